package beaconbus

import (
	"maps"
	"strings"
	"time"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// Request describes one logical call.
type Request struct {
	// Operation is the func discriminator placed in the payload.
	Operation string

	// Label names the call in degraded-mode comments, as in
	// "Event module not available. <Label> failed."
	Label string

	// Event names the awaited completion in timeout comments, as in
	// "Did not receive the <Event> complete event ...". Defaults to
	// Label in lower case.
	Event string

	// Params are merged into the payload next to func.
	Params map[string]any

	// Completion is the reply tag waited for.
	Completion event.Tag

	// Timeout overrides the client's default wait.
	Timeout time.Duration

	// DryRun returns DryRunComment without touching the bus.
	DryRun bool

	// DryRunComment is the "would be ..." text for dry runs.
	DryRunComment string

	// Interpreter decides the outcome of a completed reply. Nil means
	// success with the reply's comment.
	Interpreter Interpreter
}

// payload builds the request payload. func always wins over Params.
func (r Request) payload() map[string]any {
	data := make(map[string]any, len(r.Params)+1)
	maps.Copy(data, r.Params)
	data["func"] = r.Operation
	return data
}

func (r Request) eventName() string {
	if r.Event != "" {
		return r.Event
	}
	return strings.ToLower(r.Label)
}

// Interpreter turns a completed reply into an Outcome.
type Interpreter interface {
	Interpret(reply Reply) Outcome
}

// InterpreterFunc adapts a function to Interpreter.
type InterpreterFunc func(reply Reply) Outcome

// Interpret implements Interpreter.
func (f InterpreterFunc) Interpret(reply Reply) Outcome {
	return f(reply)
}

// acceptReply is used when a request carries no Interpreter.
var acceptReply = InterpreterFunc(func(reply Reply) Outcome {
	return Succeeded(reply.Comment()).WithData(reply.Payload())
})
