package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memarchive/internal/classifier"
	"memarchive/internal/orchestrator"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func writeDoc(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(Options{})
	require.NoError(t, err)
	return d
}

func TestAutoDetect_KeepsNewest(t *testing.T) {
	root := t.TempDir()
	active := filepath.Join(root, "core", "active")
	writeDoc(t, filepath.Join(active, "progress_v1.0.md"), "old", base)
	writeDoc(t, filepath.Join(active, "progress_v1.1.md"), "mid", base.Add(time.Hour))
	writeDoc(t, filepath.Join(active, "progress_v1.2.md"), "new", base.Add(2*time.Hour))
	writeDoc(t, filepath.Join(active, "techContext.md"), "only", base)

	result, err := newDetector(t).AutoDetect(root)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Scanned)
	assert.Equal(t, []string{filepath.Join("core", "active", "progress_v1.2.md")}, result.Kept)
	require.Len(t, result.Operations, 2)

	sources := []string{result.Operations[0].Source, result.Operations[1].Source}
	assert.ElementsMatch(t, []string{
		filepath.Join("core", "active", "progress_v1.0.md"),
		filepath.Join("core", "active", "progress_v1.1.md"),
	}, sources)
	for _, op := range result.Operations {
		assert.Equal(t, orchestrator.MoveOperation, op.OperationType)
		assert.Equal(t, filepath.Join("core", "archive"), op.DestinationFolder)
		assert.Equal(t, "core", op.MemoryType)
		assert.Equal(t, "Archive older version of progress", op.Description)
	}
}

func TestAutoDetect_AcrossMemoryTypes(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "episodic", "active", "session_v1.md"), "a", base)
	writeDoc(t, filepath.Join(root, "episodic", "active", "session_v2.md"), "b", base.Add(time.Minute))
	writeDoc(t, filepath.Join(root, "procedural", "active", "workflow_v1.md"), "a", base.Add(time.Minute))
	writeDoc(t, filepath.Join(root, "procedural", "active", "workflow.md"), "b", base)
	writeDoc(t, filepath.Join(root, "procedural", "active", "notes.txt"), "ignored", base)

	result, err := newDetector(t).AutoDetect(root)
	require.NoError(t, err)

	require.Len(t, result.Operations, 2)
	assert.Equal(t, filepath.Join("episodic", "active", "session_v1.md"), result.Operations[0].Source)
	assert.Equal(t, "episodic", result.Operations[0].MemoryType)
	assert.Equal(t, filepath.Join("procedural", "active", "workflow.md"), result.Operations[1].Source)
	assert.Equal(t, filepath.Join("procedural", "archive"), result.Operations[1].DestinationFolder)
}

func TestAutoDetect_EmptyBank(t *testing.T) {
	result, err := newDetector(t).AutoDetect(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, result.Operations)
	assert.Zero(t, result.Scanned)
}

func TestCreateVersioned(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "core", "active", "progress_v1.2.md")
	writeDoc(t, src, "body", base)
	d := newDetector(t)

	v, err := d.CreateVersioned(root, filepath.Join("core", "active", "progress_v1.2.md"), "core")
	require.NoError(t, err)
	assert.True(t, v.Created)
	assert.Equal(t, filepath.Join(root, "core", "active", "progress_v1.3.md"), v.Target)

	data, err := os.ReadFile(v.Target)
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))

	again, err := d.CreateVersioned(root, src, "core")
	require.NoError(t, err)
	assert.False(t, again.Created)
}

func TestCreateVersioned_Unversioned(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "inbox", "workflow.md")
	writeDoc(t, src, "steps", base)

	v, err := newDetector(t).CreateVersioned(root, src, "procedural")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "procedural", "active", "workflow_v1.0.md"), v.Target)
	assert.FileExists(t, v.Target)
}

func TestCreateVersioned_MissingSource(t *testing.T) {
	_, err := newDetector(t).CreateVersioned(t.TempDir(), "core/active/absent.md", "core")
	assert.Error(t, err)
}

func TestAutoVersion(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "core", "active", "progress_v1.md"), "p", base)
	writeDoc(t, filepath.Join(root, "episodic", "active", "session_v2.0.md"), "s", base)

	ops := []orchestrator.Operation{
		{OperationType: "move", Source: "core/active/progress_v1.md", DestinationFolder: "core/archive", MemoryType: "core"},
		{OperationType: "move", Source: "episodic/active/session_v2.0.md", DestinationFolder: "episodic/archive"},
		{OperationType: "move", Source: "core/active/absent.md", DestinationFolder: "core/archive"},
		{OperationType: "copy", Source: "core/active/progress_v1.md", DestinationFolder: "core/archive"},
	}

	created, err := newDetector(t).AutoVersion(root, ops, classifier.New(classifier.Options{Root: root}))
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.FileExists(t, filepath.Join(root, "core", "active", "progress_v1.1.md"))
	assert.FileExists(t, filepath.Join(root, "episodic", "active", "session_v2.1.md"))
}

// Every group keeps exactly one document, and that document is the newest.
func TestAutoDetectKeepsOnePerGroup(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("one kept document per group, the rest archived", prop.ForAll(
		func(sizes []int) bool {
			root := t.TempDir()
			active := filepath.Join(root, "semantic", "active")
			total, multi := 0, 0
			for g, n := range sizes {
				for v := 0; v < n; v++ {
					path := filepath.Join(active, fmt.Sprintf("doc%d_v%d.md", g, v))
					writeDoc(t, path, "x", base.Add(time.Duration(v)*time.Minute))
				}
				total += n
				if n > 1 {
					multi++
				}
			}

			result, err := newDetector(t).AutoDetect(root)
			if err != nil {
				return false
			}

			wantOps := 0
			for _, n := range sizes {
				if n > 1 {
					wantOps += n - 1
				}
			}
			if len(result.Operations) != wantOps || len(result.Kept) != multi || result.Scanned != total {
				return false
			}
			for _, kept := range result.Kept {
				var g int
				if _, err := fmt.Sscanf(filepath.Base(kept), "doc%d_v", &g); err != nil {
					return false
				}
				if filepath.Base(kept) != fmt.Sprintf("doc%d_v%d.md", g, sizes[g]-1) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
