package mlog

import (
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/event"
)

// LogDispatch logs a message indicating that a command is being published.
func LogDispatch(
	log logging.Logger,
	env envelope.Command,
	attempt int,
) {
	logging.LogString(
		log,
		String(
			commandIDs(env),
			[]Icon{
				ProduceIcon,
				retryIcon(attempt),
			},
			string(env.Payload.Kind()),
			env.Payload.Description(),
		),
	)
}

// LogPublishFailure logs a message indicating that a command could not be
// published. retry is true if the publish will be attempted again.
func LogPublishFailure(
	log logging.Logger,
	env envelope.Command,
	cause error,
	retry bool,
) {
	next := "giving up"
	if retry {
		next = "retrying"
	}

	logging.LogString(
		log,
		String(
			commandIDs(env),
			[]Icon{
				ProduceErrorIcon,
				ErrorIcon,
			},
			string(env.Payload.Kind()),
			cause.Error(),
			next,
		),
	)
}

// LogResult logs a debug message indicating that the result of a command has
// been received.
func LogResult(
	log logging.Logger,
	env envelope.Command,
	r command.Result,
	rtt time.Duration,
) {
	if !logging.IsDebug(log) {
		return
	}

	text := []string{
		string(env.Payload.Kind()),
		string(r.Status()),
	}

	var icon Icon
	if e, ok := r.(command.ErrorResult); ok {
		icon = ErrorIcon
		text = append(text, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}

	text = append(text, fmt.Sprintf("round-trip %s", rtt))

	logging.DebugString(
		log,
		String(
			commandIDs(env),
			[]Icon{
				ConsumeIcon,
				icon,
			},
			text...,
		),
	)
}

// LogTimeout logs a message indicating that no result was received for a
// command before its deadline.
func LogTimeout(
	log logging.Logger,
	env envelope.Command,
	timeout time.Duration,
) {
	logging.LogString(
		log,
		String(
			commandIDs(env),
			[]Icon{
				ConsumeErrorIcon,
				ErrorIcon,
			},
			string(env.Payload.Kind()),
			fmt.Sprintf("no result within %s", timeout),
		),
	)
}

// LogUnroutable logs a debug message indicating that a result was dropped
// because it is not addressed to a pending call.
func LogUnroutable(
	log logging.Logger,
	token string,
	reason string,
) {
	if !logging.IsDebug(log) {
		return
	}

	logging.DebugString(
		log,
		String(
			[]IconWithLabel{
				ReplicaIcon.WithID(token),
			},
			[]Icon{
				ConsumeErrorIcon,
				"",
			},
			"unroutable result",
			reason,
		),
	)
}

// LogExecute logs a message indicating that a command has been executed by
// the process engine.
func LogExecute(
	log logging.Logger,
	env envelope.Command,
	r command.Result,
) {
	text := []string{
		string(env.Payload.Kind()),
		env.Payload.Description(),
	}

	var icon Icon
	if e, ok := r.(command.ErrorResult); ok {
		icon = ErrorIcon
		text = append(text, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}

	logging.LogString(
		log,
		String(
			commandIDs(env),
			[]Icon{
				ProcessIcon,
				icon,
			},
			text...,
		),
	)
}

// LogMalformedCommand logs a message indicating that a command could not be
// decoded. replied is true if an error result was sent to the caller.
func LogMalformedCommand(
	log logging.Logger,
	env envelope.Command,
	cause error,
	replied bool,
) {
	next := "discarded"
	if replied {
		next = "error result sent"
	}

	logging.LogString(
		log,
		String(
			commandIDs(env),
			[]Icon{
				ConsumeErrorIcon,
				ErrorIcon,
			},
			"malformed command",
			cause.Error(),
			next,
		),
	)
}

// LogProjection logs a debug message indicating that an event has been
// applied to the read-model.
func LogProjection(
	log logging.Logger,
	e event.Event,
	err error,
) {
	if !logging.IsDebug(log) {
		return
	}

	var (
		id   string
		text string
	)

	switch x := e.(type) {
	case event.ProcessInstanceUpdated:
		id = x.Instance.ID
		text = fmt.Sprintf("process instance is %s", x.Instance.Status)
	case event.ProcessInstanceDeleted:
		id = x.ProcessInstanceID
		text = "process instance deleted"
	}

	messages := []string{text}
	if err != nil {
		messages = append(messages, err.Error())
	}

	logging.DebugString(
		log,
		String(
			[]IconWithLabel{
				InstanceIDIcon.WithID(id),
			},
			[]Icon{
				ProjectionIcon,
				errorIcon(err),
			},
			messages...,
		),
	)
}

// commandIDs returns the ID labels for a command envelope.
func commandIDs(env envelope.Command) []IconWithLabel {
	var replica string
	if ch, err := envelope.ParseReplyChannel(env.ReplyChannel); err == nil {
		replica = ch.Replica
	}

	return []IconWithLabel{
		CommandIDIcon.WithID(env.ID),
		ReplicaIcon.WithID(replica),
	}
}

func errorIcon(err error) Icon {
	if err == nil {
		return ""
	}

	return ErrorIcon
}

func retryIcon(attempt int) Icon {
	if attempt <= 1 {
		return ""
	}

	return RetryIcon
}
