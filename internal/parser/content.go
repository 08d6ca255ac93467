package parser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
)

// Content is a message payload: either a plain string or an array
// of typed blocks. The original JSON is kept verbatim so exports can
// re-emit it unmodified. The zero value is the empty string.
type Content struct {
	raw []byte
}

// StringContent returns Content holding a plain string.
func StringContent(s string) Content {
	b, err := json.Marshal(s)
	if err != nil {
		return Content{}
	}
	return Content{raw: b}
}

// RawContent wraps already-encoded JSON. The caller must not
// modify raw afterwards.
func RawContent(raw []byte) Content {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Content{}
	}
	return Content{raw: raw}
}

// MarshalJSON returns the original JSON, or "" for empty content.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte(`""`), nil
	}
	return c.raw, nil
}

// UnmarshalJSON keeps a private copy of data. JSON null decodes to
// the empty string.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		c.raw = nil
		return nil
	}
	c.raw = append([]byte(nil), trimmed...)
	return nil
}

func (c Content) result() gjson.Result {
	if len(c.raw) == 0 {
		return gjson.Result{Type: gjson.String}
	}
	return gjson.ParseBytes(c.raw)
}

// IsString reports whether the payload is a plain string.
func (c Content) IsString() bool {
	return c.result().Type == gjson.String
}

// IsBlocks reports whether the payload is an array of blocks.
func (c Content) IsBlocks() bool {
	return c.result().IsArray()
}

// Text returns the payload when it is a plain string.
func (c Content) Text() string {
	r := c.result()
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// Raw returns the payload's JSON encoding.
func (c Content) Raw() []byte {
	b, _ := c.MarshalJSON()
	return b
}

// forEachBlock calls fn for each element of a block array. It is a
// no-op for string content.
func (c Content) forEachBlock(fn func(typ string, block gjson.Result) bool) {
	r := c.result()
	if !r.IsArray() {
		return
	}
	r.ForEach(func(_, block gjson.Result) bool {
		return fn(block.Get("type").Str, block)
	})
}

// HasBlock reports whether any block has the given type.
func (c Content) HasBlock(typ string) bool {
	found := false
	c.forEachBlock(func(t string, _ gjson.Result) bool {
		if t == typ {
			found = true
			return false
		}
		return true
	})
	return found
}

// ToolName returns the name of the first tool_use block, or "".
func (c Content) ToolName() string {
	name := ""
	c.forEachBlock(func(t string, block gjson.Result) bool {
		if t == BlockToolUse {
			name = block.Get("name").Str
			return false
		}
		return true
	})
	return name
}

// HasError reports whether any tool_result block sets is_error.
func (c Content) HasError() bool {
	found := false
	c.forEachBlock(func(t string, block gjson.Result) bool {
		if t == BlockToolResult && block.Get("is_error").Bool() {
			found = true
			return false
		}
		return true
	})
	return found
}

// FlattenText extracts searchable text from a payload. Strings are
// returned verbatim. For block arrays each text block contributes
// its text, each tool_use "Tool: <name>", each tool_result its result
// content, and any other block an empty string; the parts are joined
// by single spaces.
func FlattenText(c Content) string {
	r := c.result()
	if r.Type == gjson.String {
		return r.Str
	}
	if !r.IsArray() {
		return ""
	}

	var parts []string
	r.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").Str {
		case BlockText:
			parts = append(parts, block.Get("text").Str)
		case BlockToolUse:
			parts = append(parts, "Tool: "+block.Get("name").Str)
		case BlockToolResult:
			parts = append(parts, toolResultText(block.Get("content")))
		default:
			parts = append(parts, "")
		}
		return true
	})
	return strings.Join(parts, " ")
}

// toolResultText returns a tool_result's content. Results are
// usually strings; array results contribute their nested text
// blocks and anything else its raw JSON.
func toolResultText(content gjson.Result) string {
	switch {
	case !content.Exists():
		return ""
	case content.Type == gjson.String:
		return content.Str
	case content.IsArray():
		var parts []string
		content.ForEach(func(_, block gjson.Result) bool {
			if text := block.Get("text"); text.Exists() {
				parts = append(parts, text.Str)
			}
			return true
		})
		return strings.Join(parts, " ")
	default:
		return content.Raw
	}
}
