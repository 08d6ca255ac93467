package timeline

import (
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/wesm/sessiontree/internal/parser"
)

// Stats summarizes a forest for display alongside it.
type Stats struct {
	Total             int      `json:"total_events"`
	UserMessages      int      `json:"user_messages"`
	AssistantMessages int      `json:"assistant_messages"`
	ToolCalls         int      `json:"tool_calls"`
	ToolErrors        int      `json:"tool_errors"`
	Local             int      `json:"local"`
	Remote            int      `json:"remote"`
	Models            []string `json:"models"`
	Sessions          []string `json:"sessions"`
	Versions          []string `json:"versions"`

	ByKind map[parser.EventKind]int `json:"by_kind"`
}

// ComputeStats counts every event in the forest. Tool calls include
// both requests and results; tool errors are results flagged
// is_error. Models and sessions are sorted;
// versions are in semantic version order with non-semver strings
// last.
func ComputeStats(forest []*Event) Stats {
	s := Stats{
		Models:   []string{},
		Sessions: []string{},
		Versions: []string{},
		ByKind:   map[parser.EventKind]int{},
	}
	models := map[string]bool{}
	sessions := map[string]bool{}
	versions := map[string]bool{}

	Walk(forest, func(ev *Event, _ int) {
		s.Total++
		s.ByKind[ev.Kind]++
		switch ev.Kind {
		case parser.KindUserMessage:
			s.UserMessages++
		case parser.KindAssistantMessage:
			s.AssistantMessages++
		case parser.KindToolRequest:
			s.ToolCalls++
		case parser.KindToolResult:
			s.ToolCalls++
			if ev.Content.HasError() {
				s.ToolErrors++
			}
		}
		if ev.IsLocal {
			s.Local++
		} else {
			s.Remote++
		}
		addDistinct(&s.Models, models, ev.Metadata.Model)
		addDistinct(&s.Sessions, sessions, ev.Metadata.SessionID)
		addDistinct(&s.Versions, versions, ev.Metadata.Version)
	})

	slices.Sort(s.Models)
	slices.Sort(s.Sessions)
	slices.SortStableFunc(s.Versions, compareVersions)
	return s
}

func addDistinct(dst *[]string, seen map[string]bool, v string) {
	if v == "" || seen[v] {
		return
	}
	seen[v] = true
	*dst = append(*dst, v)
}

// compareVersions orders tool versions such as "1.0.80" by
// semantic version. Strings that are not semver sort after the
// valid ones, lexically.
func compareVersions(a, b string) int {
	va, vb := canonicalVersion(a), canonicalVersion(b)
	switch {
	case va != "" && vb != "":
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case va != "":
		return -1
	case vb != "":
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
