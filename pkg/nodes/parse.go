package nodes

import (
	"encoding/json"
	"fmt"
)

// decodeOutput implements the tolerant parsing spec.md §4.5 calls for:
// preferred path is a machine-readable payload the agent already
// produced as a Go value (the common case once the real LLM session
// emits a parsed `tests/test_results.json`-style file and the adapter
// layer decodes it); fallback is re-marshaling through JSON for any
// map/string representation; final fallback is an error carrying the
// raw output for the caller to preserve in a failure record.
func decodeOutput(output any, into any) error {
	switch v := output.(type) {
	case nil:
		return fmt.Errorf("nodes: empty output")
	case string:
		if err := json.Unmarshal([]byte(v), into); err != nil {
			return fmt.Errorf("nodes: parse raw output: %w (raw=%q)", err, v)
		}
		return nil
	default:
		// Round-trip through JSON so either an already-typed struct or
		// a generic map[string]any decodes into `into` uniformly.
		blob, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("nodes: re-marshal output: %w", err)
		}
		if err := json.Unmarshal(blob, into); err != nil {
			return fmt.Errorf("nodes: decode output: %w", err)
		}
		return nil
	}
}
