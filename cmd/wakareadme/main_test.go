package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakareadme/internal/section"
	"wakareadme/internal/storage"
)

const profile = "# Hi\n\n<!--START_SECTION:waka-->\nold\n<!--END_SECTION:waka-->\n\nBye\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPatchFromStdin(t *testing.T) {
	path := writeProfile(t, profile)

	out, err := execute(t, "new stats\n", "patch", path, "--section=waka", "--block=-")
	require.NoError(t, err)
	assert.Contains(t, out, `Updated section "waka"`)
	assert.Equal(t, "# Hi\n\n<!--START_SECTION:waka-->\nnew stats\n<!--END_SECTION:waka-->\n\nBye\n", readFile(t, path))

	out, err = execute(t, "new stats\n", "patch", path, "--section=waka", "--block=-")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes detected")
}

func TestPatchFromFile(t *testing.T) {
	path := writeProfile(t, strings.ReplaceAll(profile, "\n", "\r\n"))
	block := filepath.Join(t.TempDir(), "block.md")
	require.NoError(t, os.WriteFile(block, []byte("line one\nline two\n"), 0o644))

	_, err := execute(t, "", "patch", path, "--section=waka", "--block="+block)
	require.NoError(t, err)
	assert.Equal(t, "# Hi\r\n\r\n<!--START_SECTION:waka-->\r\nline one\r\nline two\r\n<!--END_SECTION:waka-->\r\n\r\nBye\r\n", readFile(t, path))
}

func TestPatchListsSectionsOnMissingMarker(t *testing.T) {
	path := writeProfile(t, profile)

	out, err := execute(t, "x", "patch", path, "--section=blog", "--block=-")
	require.ErrorIs(t, err, section.ErrMarkerNotFound)
	assert.Contains(t, out, "Sections found in")
	assert.Contains(t, out, "waka")
	assert.Equal(t, profile, readFile(t, path))
}

func TestReadBlock(t *testing.T) {
	block, err := readBlock(strings.NewReader("a\r\nb\r\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "a\r\nb", block)

	_, err = readBlock(nil, filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorContains(t, err, "failed to read block")
}

func TestCacheClearAndPrune(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "cache.db")
	for _, owner := range []string{"octo", "acme"} {
		store, err := storage.NewSQLiteStore(db, owner, 0)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "octo/api_commits", map[string]int{"n": 1}))
		require.NoError(t, store.Close())
	}

	out, err := execute(t, "", "cache", "clear", "--path="+db, "--owner=octo")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared cache of octo")

	out, err = execute(t, "", "cache", "prune", "--path="+db, "--ttl-days=1")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 0 expired entries")

	for owner, want := range map[string]bool{"octo": false, "acme": true} {
		store, err := storage.NewSQLiteStore(db, owner, time.Hour)
		require.NoError(t, err)
		_, ok, err := store.Get(ctx, "octo/api_commits")
		require.NoError(t, err)
		assert.Equal(t, want, ok, owner)
		require.NoError(t, store.Close())
	}
}
