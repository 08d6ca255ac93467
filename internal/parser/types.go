package parser

// RoleType identifies the role of a message sender.
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAssistant RoleType = "assistant"
	RoleSystem    RoleType = "system"
)

// Record-level "type" discriminators written by Claude Code.
const (
	EntryUser    = "user"
	EntrySummary = "summary"
)

// EventKind is the semantic classification of a record.
type EventKind string

const (
	KindUserMessage      EventKind = "user-message"
	KindAssistantMessage EventKind = "assistant-message"
	KindToolRequest      EventKind = "tool-request"
	KindToolResult       EventKind = "tool-result"
	KindSystemMessage    EventKind = "system-message"
	KindSummary          EventKind = "summary"
	KindMeta             EventKind = "meta"
)

// Kinds lists every EventKind in display order.
var Kinds = []EventKind{
	KindUserMessage,
	KindAssistantMessage,
	KindToolRequest,
	KindToolResult,
	KindSystemMessage,
	KindSummary,
	KindMeta,
}

// Record is one decoded line of a transcript, before
// classification. Unknown fields are ignored.
type Record struct {
	UUID        string   `json:"uuid"`
	ParentUUID  *string  `json:"parentUuid"`
	Timestamp   string   `json:"timestamp"`
	Type        string   `json:"type"`
	Message     *Message `json:"message,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	Version     string   `json:"version,omitempty"`
	Cwd         string   `json:"cwd,omitempty"`
	GitBranch   string   `json:"gitBranch,omitempty"`
	IsMeta      bool     `json:"isMeta,omitempty"`
	IsSidechain bool     `json:"isSidechain,omitempty"`
	UserType    string   `json:"userType,omitempty"`
	RequestID   string   `json:"requestId,omitempty"`
	LeafUUID    string   `json:"leafUuid,omitempty"`
	Summary     string   `json:"summary,omitempty"`

	// Line is the 1-based line number in the source text.
	Line int `json:"-"`
}

// Message is the payload of a user, assistant, or system turn.
type Message struct {
	ID      string   `json:"id,omitempty"`
	Role    RoleType `json:"role"`
	Content Content  `json:"content"`
	Model   string   `json:"model,omitempty"`
}

// Metadata holds the session and environment fields copied onto
// each timeline event.
type Metadata struct {
	Model     string `json:"model,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Version   string `json:"version,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	GitBranch string `json:"gitBranch,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}
