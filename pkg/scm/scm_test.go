package scm

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available on PATH")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("base\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "base")
	return dir
}

func TestSimulateMergeCleanFastForward(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-q", "-b", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("feature\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add feature file")
	runGit(t, dir, "checkout", "-q", "main")

	adapter := New(dir, 10*time.Second)
	sim, err := adapter.SimulateMerge(context.Background(), "feature", "main")
	require.NoError(t, err)
	require.True(t, sim.Mergeable)
	require.Contains(t, sim.FilesChanged, "feature.txt")
	require.Empty(t, sim.Conflicts)
}

func TestSimulateMergeDetectsConflict(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-q", "-b", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("feature change\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "change base from feature")
	runGit(t, dir, "checkout", "-q", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("main change\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "change base from main")

	adapter := New(dir, 10*time.Second)
	sim, err := adapter.SimulateMerge(context.Background(), "feature", "main")
	require.NoError(t, err)
	require.False(t, sim.Mergeable)
	require.NotEmpty(t, sim.Conflicts)
}

func TestExecuteMergeSafeAppliesCleanMerge(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-q", "-b", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("feature\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add feature file")
	runGit(t, dir, "checkout", "-q", "main")

	adapter := New(dir, 10*time.Second)
	sha, err := adapter.ExecuteMergeSafe(context.Background(), "feature", "main")
	require.NoError(t, err)
	require.NotEmpty(t, sha)
	require.FileExists(t, filepath.Join(dir, "feature.txt"))
}

func TestExecuteMergeSafeResetsOnConflict(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-q", "-b", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("feature change\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "change base from feature")
	runGit(t, dir, "checkout", "-q", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("main change\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "change base from main")

	preHeadOut, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)

	adapter := New(dir, 10*time.Second)
	_, err = adapter.ExecuteMergeSafe(context.Background(), "feature", "main")
	require.Error(t, err)

	postHeadOut, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	require.Equal(t, string(preHeadOut), string(postHeadOut))
}

func TestLogEntriesReturnsNewestFirst(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.txt"), []byte("second\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "second commit")

	adapter := New(dir, 10*time.Second)
	entries, err := adapter.LogEntries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "second commit", entries[0].Subject)
	require.Equal(t, "base", entries[1].Subject)
}
