package envelope

import (
	"github.com/dogmatiq/processkit/command"
	"github.com/google/uuid"
)

// Packer puts commands and results into envelopes.
type Packer struct {
	// Replica is the ID of the gateway instance that owns the reply channels
	// of the packed commands.
	Replica string

	// GenerateID is a function used to generate new correlation IDs. If it is
	// nil, a UUID is generated.
	GenerateID func() string
}

// PackCommand returns a new command envelope containing c.
//
// The correlation ID doubles as the command ID.
func (p *Packer) PackCommand(c command.Command) (Command, ReplyChannel) {
	ch := ReplyChannel{
		Replica:       p.Replica,
		CorrelationID: p.generateID(),
	}

	return Command{
		ID:           ch.CorrelationID,
		ReplyChannel: ch.String(),
		Payload:      c,
	}, ch
}

// PackResult returns a new result envelope containing r, addressed to the
// reply channel of cause.
func PackResult(cause Command, r command.Result) Result {
	return Result{
		ReplyChannel: cause.ReplyChannel,
		Payload:      r,
	}
}

// generateID generates a new correlation ID.
func (p *Packer) generateID() string {
	if p.GenerateID != nil {
		return p.GenerateID()
	}

	return uuid.NewString()
}
