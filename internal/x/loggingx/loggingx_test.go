package loggingx_test

import (
	"github.com/dogmatiq/dodeca/logging"
	. "github.com/dogmatiq/processkit/internal/x/loggingx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("func WithPrefix()", func() {
	var (
		target *logging.BufferedLogger
		logger logging.Logger
	)

	BeforeEach(func() {
		target = &logging.BufferedLogger{CaptureDebug: true}
		logger = WithPrefix(target, "<%s %d%%> ", "prefix", 100)
	})

	It("prefixes formatted messages", func() {
		logger.Log("<message %d>", 1)
		logger.Debug("<debug %d>", 2)

		Expect(target.Messages()).To(Equal([]logging.BufferedLogMessage{
			{Message: "<prefix 100%> <message 1>"},
			{Message: "<prefix 100%> <debug 2>", IsDebug: true},
		}))
	})

	It("prefixes pre-formatted messages", func() {
		logger.LogString("<message %d>")
		logger.DebugString("<debug>")

		Expect(target.Messages()).To(Equal([]logging.BufferedLogMessage{
			{Message: "<prefix 100%> <message %d>"},
			{Message: "<prefix 100%> <debug>", IsDebug: true},
		}))
	})

	It("reports the debug setting of the target", func() {
		Expect(logger.IsDebug()).To(BeTrue())

		target.CaptureDebug = false
		Expect(logger.IsDebug()).To(BeFalse())
	})
})

var _ = Describe("type Zap", func() {
	var (
		logs   *observer.ObservedLogs
		logger Zap
	)

	BeforeEach(func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		logger = Zap{Logger: zap.New(core)}
	})

	It("writes messages at the info level", func() {
		logger.Log("<message %d>", 1)
		logger.LogString("<string>")

		entries := logs.AllUntimed()
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Level).To(Equal(zapcore.InfoLevel))
		Expect(entries[0].Message).To(Equal("<message 1>"))
		Expect(entries[1].Message).To(Equal("<string>"))
	})

	It("writes debug messages at the debug level", func() {
		logger.Debug("<debug %d>", 1)
		logger.DebugString("<string>")

		entries := logs.AllUntimed()
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
		Expect(entries[0].Message).To(Equal("<debug 1>"))
	})

	It("does not format debug messages when debug logging is disabled", func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.InfoLevel)
		logger = Zap{Logger: zap.New(core)}

		Expect(logger.IsDebug()).To(BeFalse())

		logger.Debug("<debug %d>", 1)
		Expect(logs.Len()).To(Equal(0))
	})
})
