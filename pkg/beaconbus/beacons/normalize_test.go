package beacons

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	in := map[any]any{
		"count": 3,
		"ratio": float32(0.5),
		"nested": []map[string]any{
			{"n": uint8(7)},
		},
		"names": []string{"a", "b"},
		"huge":  uint64(math.MaxUint64),
	}
	want := map[string]any{
		"count":  int64(3),
		"ratio":  0.5,
		"nested": []any{map[string]any{"n": int64(7)}},
		"names":  []any{"a", "b"},
		"huge":   uint64(math.MaxUint64),
	}
	assert.Equal(t, want, Normalize(in))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]any{map[string]any{"a": 1}}, []map[string]any{{"a": int64(1)}}))
	assert.True(t, Equal([]any{}, []string{}))
	assert.False(t, Equal([]any{map[string]any{"a": 1}}, []any{map[string]any{"a": 2}}))
}

func TestEqual_Numbers(t *testing.T) {
	const big = int64(1) << 53

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "int and integral float", a: 10, b: 10.0, want: true},
		{name: "int and fractional float", a: 10, b: 10.5, want: false},
		{name: "int64 above float precision", a: big, b: big + 1, want: false},
		{name: "int64 against rounded float", a: big + 1, b: float64(big + 1), want: false},
		{name: "uint64 and int64", a: uint64(5), b: int64(5), want: true},
		{name: "uint64 above int64", a: uint64(math.MaxUint64), b: int64(-1), want: false},
		{name: "negative int and uint", a: -1, b: uint8(255), want: false},
		{name: "number and string", a: 1, b: "1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := []any{map[string]any{"x": tt.a}}
			b := []any{map[string]any{"x": tt.b}}
			assert.Equal(t, tt.want, Equal(a, b))
			assert.Equal(t, tt.want, Equal(b, a))
		})
	}
}

func TestContains(t *testing.T) {
	have := []any{
		map[string]any{"processes": map[string]any{"salt-master": "stopped"}},
		map[string]any{"interval": 10},
	}
	assert.True(t, contains(have, []any{map[string]any{"interval": 10}}))
	assert.False(t, contains(have, []any{map[string]any{"interval": 20}}))
	assert.True(t, contains(have, map[string]any{"interval": 10}))
	assert.False(t, contains(have, map[string]any{"missing": 1}))
	assert.True(t, contains(have, nil))
	assert.False(t, contains(nil, []any{map[string]any{"interval": 10}}))
}

func TestHasName(t *testing.T) {
	assert.True(t, hasName(map[string]any{"ps": nil}, "ps"))
	assert.True(t, hasName([]string{"load", "ps"}, "ps"))
	assert.False(t, hasName([]any{"load"}, "ps"))
	assert.False(t, hasName(nil, "ps"))
}

func TestModuleNameAndMerge(t *testing.T) {
	config := []any{
		map[string]any{"beacon_module": "service"},
		map[string]any{"services": map[string]any{}, "enabled": false},
		map[string]any{"enabled": true},
	}
	assert.Equal(t, "service", ModuleName("apache", config))
	assert.Equal(t, "ps", ModuleName("ps", []any{}))
	assert.Equal(t, true, Merge(config)["enabled"])
}

func TestInterpreterFor_EveryOperation(t *testing.T) {
	for _, op := range Operations() {
		assert.NotNil(t, interpreterFor(op, "ps", nil), op)
		assert.NotEmpty(t, CompletionTag(op), op)
		assert.NotEmpty(t, callSpecs[op].label, op)
	}
	assert.Panics(t, func() { interpreterFor("bogus", "", nil) })
}
