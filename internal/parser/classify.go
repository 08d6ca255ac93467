package parser

// Classification is everything derived from a single record,
// independent of any other record.
type Classification struct {
	Kind     EventKind
	IsLocal  bool
	Role     RoleType
	Content  Content
	Metadata Metadata
}

// recordShape enumerates the record layouts the classifier
// distinguishes. Every record maps to exactly one shape.
type recordShape int

const (
	shapeSummary recordShape = iota
	shapeMeta
	shapeUserText
	shapeUserToolResult
	shapeAssistantText
	shapeAssistantToolUse
	shapeSystem
	shapeUnknownRole
	shapeNoMessage
)

func shapeOf(rec Record) recordShape {
	if rec.Type == EntrySummary {
		return shapeSummary
	}
	if rec.IsMeta {
		return shapeMeta
	}
	if rec.Message == nil {
		return shapeNoMessage
	}

	content := rec.Message.Content
	switch rec.Message.Role {
	case RoleUser:
		if content.HasBlock(BlockToolResult) {
			return shapeUserToolResult
		}
		return shapeUserText
	case RoleAssistant:
		if content.HasBlock(BlockToolUse) {
			return shapeAssistantToolUse
		}
		return shapeAssistantText
	case RoleSystem:
		return shapeSystem
	default:
		return shapeUnknownRole
	}
}

func (s recordShape) kind() EventKind {
	switch s {
	case shapeSummary:
		return KindSummary
	case shapeMeta:
		return KindMeta
	case shapeUserToolResult:
		return KindToolResult
	case shapeAssistantText:
		return KindAssistantMessage
	case shapeAssistantToolUse:
		return KindToolRequest
	case shapeSystem:
		return KindSystemMessage
	case shapeUserText, shapeUnknownRole, shapeNoMessage:
		return KindUserMessage
	default:
		return KindUserMessage
	}
}

// Classifier assigns event kinds and provenance to records.
type Classifier struct {
	tools *ToolLocations
}

// NewClassifier returns a Classifier backed by tools. A nil table
// uses DefaultToolLocations.
func NewClassifier(tools *ToolLocations) *Classifier {
	if tools == nil {
		tools = DefaultToolLocations()
	}
	return &Classifier{tools: tools}
}

var defaultClassifier = NewClassifier(nil)

// Classify classifies rec with the default tool table.
func Classify(rec Record) Classification {
	return defaultClassifier.Classify(rec)
}

// Classify derives kind, provenance, role, content, and metadata
// from a single record.
func (c *Classifier) Classify(rec Record) Classification {
	kind := shapeOf(rec).kind()
	out := Classification{
		Kind:    kind,
		Content: extractContent(rec),
		Metadata: Metadata{
			SessionID: rec.SessionID,
			Version:   rec.Version,
			Cwd:       rec.Cwd,
			GitBranch: rec.GitBranch,
		},
	}
	if rec.Message != nil {
		out.Role = rec.Message.Role
		out.Metadata.Model = rec.Message.Model
	}
	out.IsLocal = c.isLocal(rec, kind, out.Content)
	return out
}

// isLocal resolves provenance for a kind. Tool results get a
// provisional local flag; the hierarchy builder replaces it with the
// originating request's flag.
func (c *Classifier) isLocal(rec Record, kind EventKind, content Content) bool {
	switch kind {
	case KindUserMessage:
		return true
	case KindAssistantMessage:
		return false
	case KindToolRequest:
		return c.tools.Lookup(content.ToolName()) == LocationLocal
	case KindToolResult:
		return true
	case KindMeta, KindSummary:
		return true
	default:
		return rec.Type == EntryUser
	}
}

func extractContent(rec Record) Content {
	if rec.Type == EntrySummary {
		return StringContent(rec.Summary)
	}
	if rec.Message == nil {
		return Content{}
	}
	return rec.Message.Content
}
