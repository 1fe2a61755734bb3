package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)
	return sb
}

func TestNewSandbox_CreatesBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "data")
	sb, err := NewSandbox(base)
	require.NoError(t, err)

	info, err := os.Stat(sb.BaseDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolvePath_RejectsEscape(t *testing.T) {
	sb := newTestSandbox(t)

	_, err := sb.ResolvePath("../outside.json")
	assert.Error(t, err)

	_, err = sb.ResolvePath("/etc/passwd")
	assert.Error(t, err)

	_, err = sb.ResolvePath("a/../../outside.json")
	assert.Error(t, err)

	resolved, err := sb.ResolvePath("a/../inside.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.BaseDir(), "inside.json"), resolved)
}

func TestRel(t *testing.T) {
	sb := newTestSandbox(t)

	abs, err := sb.ResolvePath("prod/jane/scrape/speech/item.json")
	require.NoError(t, err)

	rel, err := sb.Rel(abs)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("prod/jane/scrape/speech/item.json"), rel)

	_, err = sb.Rel("/somewhere/else")
	assert.Error(t, err)
}

func TestAtomicWrite_WritesAndOverwrites(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.AtomicWrite("state/journal.jsonl", []byte("one\n")))
	data, err := sb.ReadFile("state/journal.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))

	require.NoError(t, sb.AtomicWrite("state/journal.jsonl", []byte("one\ntwo\n")))
	data, err = sb.ReadFile("state/journal.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.AtomicWrite("dir/file.json", []byte("{}")))

	entries, err := sb.List("dir")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.json", entries[0].Name())
}

func TestExists(t *testing.T) {
	sb := newTestSandbox(t)

	exists, err := sb.Exists("missing.json")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, sb.AtomicWrite("present.json", []byte("{}")))
	exists, err = sb.Exists("present.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRemove(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.AtomicWrite("x.json", []byte("{}")))
	require.NoError(t, sb.Remove("x.json"))

	exists, err := sb.Exists("x.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWalk_RelativePaths(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, sb.AtomicWrite("a/one.json", []byte("{}")))
	require.NoError(t, sb.AtomicWrite("a/b/two.json", []byte("{}")))

	var files []string
	err := sb.Walk(".", func(relPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, filepath.ToSlash(relPath))
		}
		return nil
	})
	require.NoError(t, err)

	sort.Strings(files)
	assert.Equal(t, []string{"a/b/two.json", "a/one.json"}, files)
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile(tempName("journal.jsonl")))
	assert.False(t, IsTempFile("journal.jsonl"))
	assert.False(t, IsTempFile(".hidden"))
}
