// Package envelope describes how commands and results are carried inside
// transport messages.
package envelope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dogmatiq/processkit/command"
)

const (
	// CommandIDHeader is the name of the header that carries the command ID.
	CommandIDHeader = "cmdId"

	// ReplyChannelHeader is the name of the header that carries the reply
	// channel token. The executor echoes it unchanged on the result.
	ReplyChannelHeader = "replyChannelToken"
)

const (
	// DefaultCommandTopic is the default topic on which commands are
	// published.
	DefaultCommandTopic = "processkit.commands"

	// DefaultResultTopic is the default topic on which results are published.
	DefaultResultTopic = "processkit.results"

	// DefaultEventTopic is the default topic on which lifecycle events are
	// published.
	DefaultEventTopic = "processkit.events"
)

// ReplyChannel identifies the single pending call that a result is
// addressed to.
type ReplyChannel struct {
	// Replica is the ID of the gateway instance that dispatched the command.
	Replica string

	// CorrelationID is the ID of the pending call within that replica.
	CorrelationID string
}

// String returns the token representation of the reply channel.
func (c ReplyChannel) String() string {
	return c.Replica + "/" + c.CorrelationID
}

// ParseReplyChannel parses a reply channel token.
func ParseReplyChannel(token string) (ReplyChannel, error) {
	if token == "" {
		return ReplyChannel{}, errors.New("reply channel token is empty")
	}

	replica, id, ok := strings.Cut(token, "/")
	if !ok || replica == "" || id == "" {
		return ReplyChannel{}, fmt.Errorf("reply channel token %q is malformed", token)
	}

	return ReplyChannel{replica, id}, nil
}

// Command is a command along with its routing metadata.
type Command struct {
	// ID is the command ID. It defaults to the correlation ID.
	ID string

	// ReplyChannel is the token to echo on the result.
	ReplyChannel string

	// Payload is the command itself.
	Payload command.Command
}

// Result is a result along with its routing metadata.
type Result struct {
	// ReplyChannel is the token copied from the command.
	ReplyChannel string

	// Payload is the result itself.
	Payload command.Result
}
