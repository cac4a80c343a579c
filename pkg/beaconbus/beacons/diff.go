package beacons

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// ConfigLines renders a configuration as one "key:value" line per key.
// Keys are sorted within each mapping; mappings keep their list order.
// Numbers are rendered exactly and nested values in YAML flow style.
func ConfigLines(config any) []string {
	var lines []string
	for _, item := range items(config) {
		keys := make([]string, 0, len(item))
		for k := range item {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			lines = append(lines, k+":"+formatValue(item[k])+"\n")
		}
	}
	return lines
}

// formatValue renders one normalized value.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}

	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return "<unencodable>"
	}
	node.Style = yaml.FlowStyle
	out, err := yaml.Marshal(&node)
	if err != nil {
		return "<unencodable>"
	}
	return strings.TrimSpace(string(out))
}

// ConfigDiff returns the unified diff between the current and proposed
// configurations. Identical configurations yield "".
func ConfigDiff(current, proposed any) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        ConfigLines(current),
		B:        ConfigLines(proposed),
		FromFile: "current",
		ToFile:   "proposed",
		Context:  3,
	})
}
