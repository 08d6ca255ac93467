package parser

import (
	"slices"
	"strings"
)

// Location says where a tool runs.
type Location int

const (
	LocationUnknown Location = iota
	LocationLocal
	LocationRemote
)

func (l Location) String() string {
	switch l {
	case LocationLocal:
		return "local"
	case LocationRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ToolLocations is the static lookup table deciding whether a tool
// invocation ran on the user's machine or on the hosted side.
type ToolLocations struct {
	local   map[string]struct{}
	browser map[string]struct{}
	remote  map[string]struct{}
}

var (
	defaultLocalTools = []string{
		"TodoWrite",
		"Read",
		"Write",
		"Edit",
		"MultiEdit",
		"NotebookEdit",
		"Bash",
		"BashOutput",
		"KillShell",
		"Glob",
		"Grep",
		"ExitPlanMode",
	}

	// Browser automation drives a browser on the user's machine.
	defaultBrowserTools = []string{
		"mcp__playwright__browser_navigate",
		"mcp__playwright__browser_click",
		"mcp__playwright__browser_type",
		"mcp__playwright__browser_snapshot",
		"mcp__playwright__browser_take_screenshot",
		"mcp__playwright__browser_file_upload",
	}

	defaultRemoteTools = []string{
		"WebSearch",
		"WebFetch",
		"Task",
	}
)

// DefaultToolLocations returns a fresh table with the built-in
// tool names.
func DefaultToolLocations() *ToolLocations {
	t := &ToolLocations{
		local:   make(map[string]struct{}),
		browser: make(map[string]struct{}),
		remote:  make(map[string]struct{}),
	}
	addNames(t.local, defaultLocalTools)
	addNames(t.browser, defaultBrowserTools)
	addNames(t.remote, defaultRemoteTools)
	return t
}

func addNames(set map[string]struct{}, names []string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			set[n] = struct{}{}
		}
	}
}

// AddLocal marks names as local tools.
func (t *ToolLocations) AddLocal(names ...string) {
	addNames(t.local, names)
}

// AddRemote marks names as remote tools.
func (t *ToolLocations) AddRemote(names ...string) {
	addNames(t.remote, names)
}

// Lookup returns the location of a tool. The local set (including
// browser automation) wins over the remote set.
func (t *ToolLocations) Lookup(name string) Location {
	if _, ok := t.local[name]; ok {
		return LocationLocal
	}
	if _, ok := t.browser[name]; ok {
		return LocationLocal
	}
	if _, ok := t.remote[name]; ok {
		return LocationRemote
	}
	return LocationUnknown
}

// ToolTable is a sorted, serializable view of ToolLocations.
type ToolTable struct {
	Local   []string `json:"local"`
	Browser []string `json:"browser"`
	Remote  []string `json:"remote"`
}

// Table returns the sorted contents of each set.
func (t *ToolLocations) Table() ToolTable {
	return ToolTable{
		Local:   sortedNames(t.local),
		Browser: sortedNames(t.browser),
		Remote:  sortedNames(t.remote),
	}
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
