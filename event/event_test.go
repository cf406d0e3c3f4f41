package event_test

import (
	"github.com/dogmatiq/processkit/command"
	. "github.com/dogmatiq/processkit/event"
	. "github.com/dogmatiq/processkit/fixtures"
	"github.com/dogmatiq/processkit/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Unmarshal()", func() {
	It("returns the event in the message", func() {
		e := ProcessInstanceUpdated{
			Instance: command.ProcessInstance{
				ID:       "<instance>",
				ParentID: "<parent>",
				Status:   command.Suspended,
			},
		}

		m, err := Marshal(Marshaler, e)
		Expect(err).ShouldNot(HaveOccurred())

		x, err := Unmarshal(Marshaler, m)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(x).To(Equal(e))
	})

	It("returns an error if the message does not contain an event", func() {
		p, err := Marshaler.Marshal(command.EmptyResult{})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = Unmarshal(Marshaler, transport.NewMessage(p, nil))
		Expect(err).To(MatchError("command.EmptyResult is not an event"))
	})
})
