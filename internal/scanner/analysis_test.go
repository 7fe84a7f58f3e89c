package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memarchive/internal/category"
	"memarchive/internal/classifier"
)

func writeDoc(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("# doc\n"), 0644))
}

func newTestAnalyzer(t *testing.T, root string) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(classifier.New(classifier.Options{Root: root}), AnalyzerOptions{})
	require.NoError(t, err)
	return a
}

func TestAnalyzeDir_LooseFilesAndFolders(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "archive")

	writeDoc(t, filepath.Join(archive, "activeContext_v1.0.md"))
	writeDoc(t, filepath.Join(archive, "progress_v2.md"))
	writeDoc(t, filepath.Join(archive, "session_notes.md"))

	writeDoc(t, filepath.Join(archive, "decisions", "decision_log_v1.0.md"))
	_, err := category.NewManager().Ensure(archive, "decisions", true)
	require.NoError(t, err)

	writeDoc(t, filepath.Join(archive, "techContext", "techContext_v1.0.md"))
	writeDoc(t, filepath.Join(archive, "techContext", "techContext_v1.1.md"))

	analysis, err := newTestAnalyzer(t, root).AnalyzeDir(archive, FlatScope)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, analysis.Status)
	assert.Equal(t, 3, analysis.LooseFileCount())
	assert.Equal(t, 6, analysis.TotalFiles)
	assert.InDelta(t, 50.0, analysis.OrganizationPercentage, 0.001)

	assert.Equal(t, map[string][]string{
		"activeContext": {"activeContext_v1.0.md"},
		"progress":      {"progress_v2.md"},
		"sessions":      {"session_notes.md"},
	}, analysis.Grouping)
	assert.Equal(t, []string{"activeContext", "progress", "sessions"}, analysis.GroupNames())

	require.Len(t, analysis.Categories, 2)
	assert.Equal(t, CategoryFolder{Name: "decisions", Path: filepath.Join(archive, "decisions"), FileCount: 1, HasMetadata: true}, analysis.Categories[0])
	assert.Equal(t, CategoryFolder{Name: "techContext", Path: filepath.Join(archive, "techContext"), FileCount: 2, HasMetadata: false}, analysis.Categories[1])

	byType := make(map[RecommendationType][]Recommendation)
	for _, r := range analysis.Recommendations {
		byType[r.Type] = append(byType[r.Type], r)
	}

	require.Len(t, byType[OrganizeLooseFiles], 1)
	assert.Len(t, byType[OrganizeLooseFiles][0].Grouping, 3)

	require.Len(t, byType[AddCategoryMetadata], 1)
	assert.Equal(t, "techContext", byType[AddCategoryMetadata][0].Category)

	require.Len(t, byType[CreateCoreCategories], 1)
	assert.Equal(t, []string{"projectbrief", "productContext", "systemPatterns", "projectRules"}, byType[CreateCoreCategories][0].Categories)
}

func TestAnalyzeDir_Empty(t *testing.T) {
	dir := t.TempDir()

	analysis, err := newTestAnalyzer(t, dir).AnalyzeDir(dir, string(classifier.Episodic))
	require.NoError(t, err)

	assert.Zero(t, analysis.TotalFiles)
	assert.Zero(t, analysis.OrganizationPercentage)
	assert.Empty(t, analysis.Recommendations)
}

func TestAnalyzeDir_FullyOrganized(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, filepath.Join(dir, "sessions", "session_v1.0.md"))
	_, err := category.NewManager().Ensure(dir, "sessions", true)
	require.NoError(t, err)

	analysis, err := newTestAnalyzer(t, dir).AnalyzeDir(dir, string(classifier.Episodic))
	require.NoError(t, err)

	assert.InDelta(t, 100.0, analysis.OrganizationPercentage, 0.001)
	assert.Empty(t, analysis.Recommendations)
}

func TestAnalyzeBank(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "core", "archive", "progress_v1.0.md"))
	writeDoc(t, filepath.Join(root, "semantic", "archive", "feature_overview_v1.0.md"))

	results, err := newTestAnalyzer(t, root).AnalyzeBank(root)
	require.NoError(t, err)
	require.Len(t, results, 4)

	byScope := make(map[string]*Analysis)
	for _, r := range results {
		byScope[r.Scope] = r
	}

	assert.Equal(t, StatusOK, byScope["core"].Status)
	assert.Equal(t, []string{"progress"}, byScope["core"].GroupNames())

	assert.Equal(t, []string{"features"}, byScope["semantic"].GroupNames())
	for _, r := range byScope["semantic"].Recommendations {
		assert.NotEqual(t, CreateCoreCategories, r.Type)
	}

	for _, scope := range []string{"episodic", "procedural"} {
		assert.Equal(t, StatusMissing, byScope[scope].Status)
		require.Len(t, byScope[scope].Recommendations, 1)
		assert.Equal(t, CreateDirectory, byScope[scope].Recommendations[0].Type)
	}
}

func TestAnalyzeDir_DoesNotMutate(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, filepath.Join(dir, "progress_v1.0.md"))
	writeDoc(t, filepath.Join(dir, "guides", "guide.md"))

	before := snapshot(t, dir)
	_, err := newTestAnalyzer(t, dir).AnalyzeDir(dir, FlatScope)
	require.NoError(t, err)
	assert.Equal(t, before, snapshot(t, dir))
}

func snapshot(t *testing.T, dir string) []string {
	t.Helper()
	var paths []string
	require.NoError(t, filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		paths = append(paths, rel)
		return nil
	}))
	return paths
}
