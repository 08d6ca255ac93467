// Package testjsonl provides shared JSONL fixture builders for
// Claude Code transcript test data. Used by the parser, timeline,
// export, and server test packages.
package testjsonl

import (
	"encoding/json"
	"strings"
)

func baseRecord(
	entryType, uuid, parent, timestamp string,
) map[string]any {
	m := map[string]any{
		"type":       entryType,
		"uuid":       uuid,
		"timestamp":  timestamp,
		"parentUuid": nil,
	}
	if parent != "" {
		m["parentUuid"] = parent
	}
	return m
}

// UserJSON returns a user text message as a JSON string. An empty
// parent is written as null.
func UserJSON(uuid, parent, timestamp, content string) string {
	m := baseRecord("user", uuid, parent, timestamp)
	m["message"] = map[string]any{
		"role":    "user",
		"content": content,
	}
	return mustMarshal(m)
}

// AssistantJSON returns an assistant text reply as a JSON string.
func AssistantJSON(
	uuid, parent, timestamp, text, model string,
) string {
	m := baseRecord("assistant", uuid, parent, timestamp)
	msg := map[string]any{
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	if model != "" {
		msg["model"] = model
	}
	m["message"] = msg
	return mustMarshal(m)
}

// ToolUseJSON returns an assistant tool invocation as a JSON
// string.
func ToolUseJSON(
	uuid, parent, timestamp, toolID, name string, input any,
) string {
	if input == nil {
		input = map[string]any{}
	}
	m := baseRecord("assistant", uuid, parent, timestamp)
	m["message"] = map[string]any{
		"role": "assistant",
		"content": []map[string]any{
			{
				"type":  "tool_use",
				"id":    toolID,
				"name":  name,
				"input": input,
			},
		},
	}
	return mustMarshal(m)
}

// ToolResultJSON returns a user tool_result record as a JSON
// string.
func ToolResultJSON(
	uuid, parent, timestamp, toolID, result string, isError bool,
) string {
	block := map[string]any{
		"type":        "tool_result",
		"tool_use_id": toolID,
		"content":     result,
	}
	if isError {
		block["is_error"] = true
	}
	m := baseRecord("user", uuid, parent, timestamp)
	m["message"] = map[string]any{
		"role":    "user",
		"content": []map[string]any{block},
	}
	return mustMarshal(m)
}

// SystemJSON returns a record carrying a system-role message.
func SystemJSON(
	entryType, uuid, parent, timestamp, content string,
) string {
	m := baseRecord(entryType, uuid, parent, timestamp)
	m["message"] = map[string]any{
		"role":    "system",
		"content": content,
	}
	return mustMarshal(m)
}

// MetaJSON returns a user record flagged isMeta.
func MetaJSON(uuid, parent, timestamp, content string) string {
	m := baseRecord("user", uuid, parent, timestamp)
	m["isMeta"] = true
	m["message"] = map[string]any{
		"role":    "user",
		"content": content,
	}
	return mustMarshal(m)
}

// SummaryJSON returns a summary record as a JSON string.
func SummaryJSON(uuid, timestamp, summary string) string {
	m := map[string]any{
		"type":      "summary",
		"uuid":      uuid,
		"timestamp": timestamp,
		"summary":   summary,
		"leafUuid":  "leaf-" + uuid,
	}
	return mustMarshal(m)
}

// WithFields merges extra top-level fields into a JSON record
// produced by one of the builders above.
func WithFields(record string, fields map[string]any) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(record), &m); err != nil {
		panic(err)
	}
	for k, v := range fields {
		m[k] = v
	}
	return mustMarshal(m)
}

// JoinJSONL joins JSON lines with newlines and appends a
// trailing newline.
func JoinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// SessionBuilder constructs JSONL transcript content using a
// fluent API.
type SessionBuilder struct {
	lines []string
}

// NewSessionBuilder returns a new empty SessionBuilder.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{}
}

// AddUser appends a user text message line.
func (b *SessionBuilder) AddUser(
	timestamp, uuid, parent, content string,
) *SessionBuilder {
	b.lines = append(b.lines, UserJSON(uuid, parent, timestamp, content))
	return b
}

// AddAssistant appends an assistant text reply line.
func (b *SessionBuilder) AddAssistant(
	timestamp, uuid, parent, text string,
) *SessionBuilder {
	b.lines = append(
		b.lines, AssistantJSON(uuid, parent, timestamp, text, ""),
	)
	return b
}

// AddToolUse appends an assistant tool invocation line.
func (b *SessionBuilder) AddToolUse(
	timestamp, uuid, parent, toolID, name string,
) *SessionBuilder {
	b.lines = append(
		b.lines,
		ToolUseJSON(uuid, parent, timestamp, toolID, name, nil),
	)
	return b
}

// AddToolResult appends a tool_result line.
func (b *SessionBuilder) AddToolResult(
	timestamp, uuid, parent, toolID, result string,
) *SessionBuilder {
	b.lines = append(
		b.lines,
		ToolResultJSON(uuid, parent, timestamp, toolID, result, false),
	)
	return b
}

// AddSummary appends a summary line.
func (b *SessionBuilder) AddSummary(
	timestamp, uuid, summary string,
) *SessionBuilder {
	b.lines = append(b.lines, SummaryJSON(uuid, timestamp, summary))
	return b
}

// AddRaw appends an arbitrary raw line.
func (b *SessionBuilder) AddRaw(line string) *SessionBuilder {
	b.lines = append(b.lines, line)
	return b
}

// Len returns the number of lines added so far.
func (b *SessionBuilder) Len() int {
	return len(b.lines)
}

// String returns the JSONL content with a trailing newline.
func (b *SessionBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// StringNoTrailingNewline returns the JSONL content without a
// trailing newline.
func (b *SessionBuilder) StringNoTrailingNewline() string {
	return strings.Join(b.lines, "\n")
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
