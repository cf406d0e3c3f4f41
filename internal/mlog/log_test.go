package mlog_test

import (
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/event"
	. "github.com/dogmatiq/processkit/internal/mlog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("log functions", func() {
	var (
		logger *logging.BufferedLogger
		env    envelope.Command
	)

	BeforeEach(func() {
		logger = &logging.BufferedLogger{
			CaptureDebug: true,
		}

		env = envelope.Command{
			ID:           "<id>",
			ReplyChannel: "<replica>/<id>",
			Payload: command.SuspendProcess{
				ProcessInstanceID: "<instance>",
			},
		}
	})

	Describe("func LogDispatch()", func() {
		It("logs in the correct format", func() {
			LogDispatch(logger, env, 1)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ▲    suspend-process ● suspending process instance <instance>",
				},
			))
		})

		It("shows a retry icon on subsequent attempts", func() {
			LogDispatch(logger, env, 2)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ▲ ↻  suspend-process ● suspending process instance <instance>",
				},
			))
		})
	})

	Describe("func LogPublishFailure()", func() {
		It("logs in the correct format", func() {
			LogPublishFailure(logger, env, errors.New("<error>"), true)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  △ ✖  suspend-process ● <error> ● retrying",
				},
			))
		})
	})

	Describe("func LogResult()", func() {
		It("logs in the correct format", func() {
			LogResult(logger, env, command.EmptyResult{}, 5*time.Millisecond)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ▼    suspend-process ● empty ● round-trip 5ms",
					IsDebug: true,
				},
			))
		})

		It("includes the error detail of an error result", func() {
			LogResult(
				logger,
				env,
				command.ErrorResult{Code: command.NotFound, Message: "<message>"},
				5*time.Millisecond,
			)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ▼ ✖  suspend-process ● error ● not-found: <message> ● round-trip 5ms",
					IsDebug: true,
				},
			))
		})

		It("does not log if debug logging is disabled", func() {
			logger.CaptureDebug = false
			LogResult(logger, env, command.EmptyResult{}, 0)
			Expect(logger.Messages()).To(BeEmpty())
		})
	})

	Describe("func LogTimeout()", func() {
		It("logs in the correct format", func() {
			LogTimeout(logger, env, 30*time.Second)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ▽ ✖  suspend-process ● no result within 30s",
				},
			))
		})
	})

	Describe("func LogUnroutable()", func() {
		It("logs in the correct format", func() {
			LogUnroutable(logger, "<token>", "<reason>")

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "⋲ <token>  ▽    unroutable result ● <reason>",
					IsDebug: true,
				},
			))
		})
	})

	Describe("func LogExecute()", func() {
		It("logs in the correct format", func() {
			LogExecute(logger, env, command.EmptyResult{})

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ≡    suspend-process ● suspending process instance <instance>",
				},
			))
		})
	})

	Describe("func LogMalformedCommand()", func() {
		It("logs in the correct format", func() {
			LogMalformedCommand(
				logger,
				envelope.Command{ID: "<id>", ReplyChannel: "<replica>/<id>"},
				errors.New("<error>"),
				true,
			)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "= <id>  ⋲ <replica>  ▽ ✖  malformed command ● <error> ● error result sent",
				},
			))
		})
	})

	Describe("func LogProjection()", func() {
		It("logs in the correct format", func() {
			LogProjection(
				logger,
				event.ProcessInstanceDeleted{ProcessInstanceID: "<instance>"},
				nil,
			)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "# <instance>  Σ    process instance deleted",
					IsDebug: true,
				},
			))
		})
	})
})
