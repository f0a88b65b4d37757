package ideas

import (
	"encoding/json"
	"strings"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/common/telemetry"
)

// extractJSON returns the greedy first-'{' through last-'}' substring of a
// model reply, which tolerates prose before and after the object.
func extractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// decodeObject unmarshals the embedded JSON object of raw into v. It reports
// success; callers fall back to a usable default on failure. This boundary
// never propagates an error upward.
func decodeObject(operation, raw string, v interface{}) bool {
	candidate, ok := extractJSON(raw)
	if !ok {
		common.Logger().Warn("ideas: reply contained no JSON object", "operation", operation, "reply_length", len(raw))
		telemetry.RecordParseFallback(operation)
		return false
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		common.Logger().Warn("ideas: reply JSON malformed", "operation", operation, "error", err)
		telemetry.RecordParseFallback(operation)
		return false
	}
	return true
}
