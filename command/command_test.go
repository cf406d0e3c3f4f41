package command_test

import (
	"errors"
	"fmt"

	. "github.com/dogmatiq/processkit/command"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Command", func() {
	DescribeTable(
		"func Validate()",
		func(c Command, expect string) {
			err := c.Validate()

			if expect == "" {
				Expect(err).ShouldNot(HaveOccurred())
			} else {
				Expect(err).To(MatchError(expect))
			}
		},
		Entry("start process by ID", StartProcess{ProcessDefinitionID: "<def>"}, ""),
		Entry("start process by key", StartProcess{ProcessDefinitionKey: "<key>"}, ""),
		Entry("start process without definition", StartProcess{}, "either the process definition ID or key must be provided"),
		Entry("suspend without instance", SuspendProcess{}, "process instance ID must not be empty"),
		Entry("resume without instance", ResumeProcess{}, "process instance ID must not be empty"),
		Entry("delete without instance", DeleteProcess{}, "process instance ID must not be empty"),
		Entry("set variables without variables", SetProcessVariables{ProcessInstanceID: "<id>"}, "at least one variable must be provided"),
		Entry("remove variables with empty name", RemoveProcessVariables{ProcessInstanceID: "<id>", Names: []string{""}}, "variable name must not be empty"),
		Entry("claim without assignee", ClaimTask{TaskID: "<task>"}, "assignee must not be empty"),
		Entry("release without task", ReleaseTask{}, "task ID must not be empty"),
		Entry("complete task", CompleteTask{TaskID: "<task>"}, ""),
		Entry("create task variable without name", CreateTaskVariable{TaskID: "<task>"}, "variable name must not be empty"),
		Entry("update task variable without task", UpdateTaskVariable{Name: "<name>"}, "task ID must not be empty"),
		Entry("signal without name", SendSignal{}, "signal name must not be empty"),
		Entry("start message without name", StartMessage{}, "message name must not be empty"),
		Entry("receive message without correlation key", ReceiveMessage{Name: "<name>"}, "correlation key must not be empty"),
		Entry("sync definitions", SyncProcessDefinitions{}, ""),
	)

	It("reports a distinct kind for each command type", func() {
		kinds := map[Kind]struct{}{}

		for _, c := range []Command{
			StartProcess{},
			SuspendProcess{},
			ResumeProcess{},
			DeleteProcess{},
			SetProcessVariables{},
			RemoveProcessVariables{},
			ClaimTask{},
			ReleaseTask{},
			CompleteTask{},
			CreateTaskVariable{},
			UpdateTaskVariable{},
			SendSignal{},
			StartMessage{},
			ReceiveMessage{},
			SyncProcessDefinitions{},
		} {
			kinds[c.Kind()] = struct{}{}
		}

		Expect(kinds).To(HaveLen(15))
	})

	It("describes a process start by key when no ID is given", func() {
		c := StartProcess{ProcessDefinitionKey: "<key>"}
		Expect(c.Description()).To(Equal(`starting process with key "<key>"`))
	})
})

var _ = Describe("func NewErrorResult()", func() {
	It("uses the code of a command error", func() {
		err := fmt.Errorf("<context>: %w", Errorf(NotFound, "no task %s", "<task>"))

		Expect(NewErrorResult(err)).To(Equal(ErrorResult{
			Code:    NotFound,
			Message: "no task <task>",
		}))
	})

	It("uses the internal code for other errors", func() {
		Expect(NewErrorResult(errors.New("<error>"))).To(Equal(ErrorResult{
			Code:    Internal,
			Message: "<error>",
		}))
	})
})

var _ = Describe("type Result", func() {
	It("reports the status of each result type", func() {
		Expect(ProcessInstanceResult{}.Status()).To(Equal(Success))
		Expect(TaskResult{}.Status()).To(Equal(Success))
		Expect(ProcessDefinitionsResult{}.Status()).To(Equal(Success))
		Expect(EmptyResult{}.Status()).To(Equal(Empty))
		Expect(ErrorResult{}.Status()).To(Equal(Failure))
	})
})
