package stages

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON extracts the single JSON object from model output,
// tolerating code fences and surrounding prose.
func decodeModelJSON(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in model response")
	}

	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode model response: %w", err)
	}
	return nil
}

// orUnknown makes optional extracted fields total: absent or blank values
// become "unknown" so downstream comparisons never deal with null.
func orUnknown(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(*s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
