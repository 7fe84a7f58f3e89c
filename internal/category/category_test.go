package category

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(clock *fakeClock) *Manager {
	return NewManager(
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestEnsure_CreatesFolderAndRecord(t *testing.T) {
	root := t.TempDir()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	m := newTestManager(clock)

	folder, err := m.Ensure(root, "activeContext", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "activeContext"), folder)
	assert.DirExists(t, folder)

	data, err := os.ReadFile(RecordPath(folder))
	require.NoError(t, err)

	record, err := ParseRecord(string(data))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "activeContext", record.Category)
	assert.Equal(t, TierCore, record.Tier)
	assert.Equal(t, Describe("activeContext"), record.Description)
	assert.Equal(t, "2024-03-01 09:30:00", record.Created)
	assert.Equal(t, "2024-03-01 09:30:00", record.LastUpdated)
	assert.Contains(t, string(data), "* Last Updated: 2024-03-01 09:30:00")
}

func TestEnsure_Idempotent(t *testing.T) {
	root := t.TempDir()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	m := newTestManager(clock)

	_, err := m.Ensure(root, "research", true)
	require.NoError(t, err)

	other := filepath.Join(root, "research", "notes.md")
	require.NoError(t, os.WriteFile(other, []byte("keep me"), 0644))

	clock.Advance(2 * time.Hour)
	folder, err := m.Ensure(root, "research", true)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = m.Ensure(root, "research", true)
	require.NoError(t, err)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(RecordPath(folder))
	require.NoError(t, err)
	record, err := ParseRecord(string(data))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 09:30:00", record.Created)
	assert.Equal(t, "2024-03-01 12:30:00", record.LastUpdated)
	assert.Contains(t, string(data), "* Last Updated: 2024-03-01 12:30:00")
	assert.Equal(t, 1, strings.Count(string(data), "Last Updated:"))

	kept, err := os.ReadFile(other)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(kept))
}

func TestEnsure_WithoutMetadata(t *testing.T) {
	root := t.TempDir()
	m := newTestManager(&fakeClock{t: time.Now()})

	folder, err := m.Ensure(root, "guides", false)
	require.NoError(t, err)
	assert.DirExists(t, folder)
	assert.False(t, HasRecord(folder))
}

func TestEnsure_LegacyRecordUpdatesTimestampOnly(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "codebase")
	require.NoError(t, os.MkdirAll(folder, 0755))

	legacy := "# codebase\n\nCodebase analysis.\n\n* Created: 2020-01-01 00:00:00\n* Last Updated: 2020-01-01 00:00:00\n"
	require.NoError(t, os.WriteFile(RecordPath(folder), []byte(legacy), 0644))

	clock := &fakeClock{t: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)}
	_, err := newTestManager(clock).Ensure(root, "codebase", true)
	require.NoError(t, err)

	data, err := os.ReadFile(RecordPath(folder))
	require.NoError(t, err)
	want := strings.Replace(legacy, "Last Updated: 2020-01-01 00:00:00", "Last Updated: 2024-05-06 07:08:09", 1)
	assert.Equal(t, want, string(data))
}

func TestEnsure_LegacyRecordWithoutTimestampGetsOne(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "import")
	require.NoError(t, os.MkdirAll(folder, 0755))
	require.NoError(t, os.WriteFile(RecordPath(folder), []byte("# import"), 0644))

	clock := &fakeClock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	_, err := newTestManager(clock).Ensure(root, "import", true)
	require.NoError(t, err)

	data, err := os.ReadFile(RecordPath(folder))
	require.NoError(t, err)
	assert.Equal(t, "# import\nLast Updated: 2024-01-02 03:04:05\n", string(data))
}

func TestEnsure_PathIsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "history"), []byte("x"), 0644))

	_, err := newTestManager(&fakeClock{t: time.Now()}).Ensure(root, "history", true)
	assert.Error(t, err)
}

func TestEnsure_EmptyCategory(t *testing.T) {
	_, err := newTestManager(&fakeClock{t: time.Now()}).Ensure(t.TempDir(), "", true)
	assert.Error(t, err)
}

func TestDescribeAndTier(t *testing.T) {
	assert.Equal(t, "Documents related to widgets.", Describe("widgets"))
	assert.Equal(t, TierSpecial, TierOf("priority"))
	assert.Equal(t, TierSpecial, TierOf("metadata"))
	assert.Equal(t, TierCore, TierOf("progress"))
	assert.Equal(t, TierExtended, TierOf("sessions"))
}

func TestResolveDoesNotTouchFilesystem(t *testing.T) {
	root := t.TempDir()
	folder := Resolve(root, "features")
	assert.Equal(t, filepath.Join(root, "features"), folder)
	assert.NoDirExists(t, folder)
}
