package beaconbus

import (
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// Reply is a completion envelope as seen by an Interpreter.
type Reply struct {
	env *event.Envelope
}

// ReplyOf wraps env.
func ReplyOf(env *event.Envelope) Reply {
	return Reply{env: env}
}

// Envelope returns the underlying envelope.
func (r Reply) Envelope() *event.Envelope {
	return r.env
}

// Payload returns the reply data. Never nil.
func (r Reply) Payload() map[string]any {
	if r.env == nil || r.env.Data == nil {
		return map[string]any{}
	}
	return r.env.Data
}

// Value returns the raw value under key.
func (r Reply) Value(key string) (any, bool) {
	return r.env.Get(key)
}

// Complete reports the complete flag and whether the reply carried one.
func (r Reply) Complete() (complete, present bool) {
	return r.Bool("complete")
}

// Bool returns a boolean field. A present but non-boolean value counts
// as absent.
func (r Reply) Bool(key string) (value, present bool) {
	v, ok := r.Value(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// String returns a string field, or "".
func (r Reply) String(key string) string {
	v, _ := r.Value(key)
	s, _ := v.(string)
	return s
}

// Comment returns the reply's comment field.
func (r Reply) Comment() string {
	return r.String("comment")
}

// Map returns a mapping field, or nil when absent or not a mapping.
func (r Reply) Map(key string) map[string]any {
	v, _ := r.Value(key)
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out
	}
	return nil
}
