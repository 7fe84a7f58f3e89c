package classifier

import "memarchive/internal/matcher"

// MemoryType is the coarse tag that scopes category lookup.
type MemoryType string

const (
	Core       MemoryType = "core"
	Episodic   MemoryType = "episodic"
	Semantic   MemoryType = "semantic"
	Procedural MemoryType = "procedural"
)

// MemoryTypes lists every memory type in detection order.
var MemoryTypes = []MemoryType{Core, Episodic, Semantic, Procedural}

// Reserved names.
const (
	StorageLogStem   = "storage_log"
	PriorityPrefix   = "AAA_"
	MetadataCategory = "metadata"
	PriorityCategory = "priority"
)

// memoryTypeKeywords resolves a memory type from filename keywords when no
// path segment names one. Order matters: core names are checked first.
var memoryTypeKeywords = []struct {
	Type     MemoryType
	Keywords []string
}{
	{Core, []string{"projectbrief", "productcontext", "activecontext", "systempatterns", "techcontext", "progress", "projectrules"}},
	{Episodic, []string{"session", "decision", "implementation", "history"}},
	{Semantic, []string{"domain", "feature", "concept", "pattern"}},
	{Procedural, []string{"workflow", "guide", "process", "setup", "deployment"}},
}

// filenameRules are the memory-type-scoped tables for smart detection.
// Core rules return the canonical mixed-case document names.
var filenameRules = map[MemoryType][]matcher.Rule{
	Core: {
		{Category: "projectbrief", Keywords: []string{"projectbrief"}},
		{Category: "productContext", Keywords: []string{"productcontext"}},
		{Category: "activeContext", Keywords: []string{"activecontext"}},
		{Category: "systemPatterns", Keywords: []string{"systempatterns"}},
		{Category: "techContext", Keywords: []string{"techcontext"}},
		{Category: "progress", Keywords: []string{"progress"}},
		{Category: "projectRules", Keywords: []string{"projectrules"}},
	},
	Episodic: {
		{Category: "sessions", Keywords: []string{"session"}},
		{Category: "decisions", Keywords: []string{"decision"}},
		{Category: "implementation", Keywords: []string{"implementation"}},
		{Category: "history", Keywords: []string{"history"}},
	},
	Semantic: {
		{Category: "domain", Keywords: []string{"domain"}},
		{Category: "features", Keywords: []string{"feature"}},
		{Category: "concepts", Keywords: []string{"concept"}},
		{Category: "patterns", Keywords: []string{"pattern"}},
	},
	Procedural: {
		{Category: "workflows", Keywords: []string{"workflow"}},
		{Category: "guides", Keywords: []string{"guide"}},
		{Category: "processes", Keywords: []string{"process"}},
		{Category: "setup", Keywords: []string{"setup"}},
	},
}

// extendedRules apply to every memory type after the scoped table.
var extendedRules = []matcher.Rule{
	{Category: "refactoring", Keywords: []string{"refactor", "restructure", "cleanup"}},
	{Category: "architecture", Keywords: []string{"architect", "structure", "design"}},
	{Category: "codebase", Keywords: []string{"codebase", "code_review", "analysis"}},
	{Category: "import", Keywords: []string{"import", "module", "library", "dependency"}},
	{Category: "research", Keywords: []string{"research", "study", "investigation"}},
	{Category: MetadataCategory, Keywords: []string{"meta", "changelog", "record"}},
}

// contentRules are matched against the case-folded content sample.
var contentRules = map[MemoryType][]matcher.Rule{
	Core: {
		{Category: "projectbrief", Keywords: []string{"project brief", "project overview", "project goals"}},
		{Category: "productContext", Keywords: []string{"product context", "user experience", "business logic"}},
		{Category: "activeContext", Keywords: []string{"active context", "current focus", "current work"}},
		{Category: "systemPatterns", Keywords: []string{"system patterns", "architecture", "components"}},
		{Category: "techContext", Keywords: []string{"tech context", "technology stack", "development environment"}},
		{Category: "progress", Keywords: []string{"progress", "milestone", "completion", "status"}},
		{Category: "projectRules", Keywords: []string{"project rules", "patterns", "conventions", "preferences"}},
	},
	Episodic: {
		{Category: "sessions", Keywords: []string{"session summary", "session log", "during the session"}},
		{Category: "decisions", Keywords: []string{"decision record", "chose to", "decided to"}},
		{Category: "implementation", Keywords: []string{"implementation", "was built", "was developed"}},
		{Category: "history", Keywords: []string{"history", "timeline", "chronology", "evolution"}},
	},
	Semantic: {
		{Category: "domain", Keywords: []string{"domain", "business concept", "entity", "model"}},
		{Category: "features", Keywords: []string{"feature", "functionality", "capability", "user story"}},
		{Category: "concepts", Keywords: []string{"concept", "idea", "principle", "theory"}},
		{Category: "patterns", Keywords: []string{"pattern", "approach", "solution", "design pattern"}},
	},
	Procedural: {
		{Category: "workflows", Keywords: []string{"workflow", "process flow", "sequence", "stages"}},
		{Category: "guides", Keywords: []string{"guide", "how to", "instruction", "step by step"}},
		{Category: "processes", Keywords: []string{"process", "procedure", "operation", "method"}},
		{Category: "setup", Keywords: []string{"setup", "installation", "configuration", "environment"}},
	},
}

// CoreCategories returns the canonical core document categories in table order.
func CoreCategories() []string {
	rules := filenameRules[Core]
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Category)
	}
	return out
}

// ScopedCategories returns the known categories for a memory type.
func ScopedCategories(t MemoryType) []string {
	rules := filenameRules[t]
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Category)
	}
	return out
}
