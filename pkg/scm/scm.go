// Package scm is the SCM adapter collaborator (spec.md §4.4): a thin,
// subprocess-driven wrapper over git that simulates and executes merges
// without ever leaving the working copy in a half-merged state.
package scm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/converge/converge/pkg/models"
)

// Error distinguishes an SCM failure from a programmer error, matching
// spec.md §4.4's "all operations fail with a distinguished SCM error".
type Error struct {
	Op      string
	Stderr  string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("scm: %s: %v: %s", e.Op, e.Wrapped, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("scm: %s: %v", e.Op, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Adapter is the SCM collaborator contract. Callers decide whether to
// retry a returned *Error through the resilience layer.
type Adapter interface {
	SimulateMerge(ctx context.Context, source, target string) (models.Simulation, error)
	ExecuteMergeSafe(ctx context.Context, source, target string) (mergeSHA string, err error)
	LogEntries(ctx context.Context, max int) ([]models.LogEntry, error)
}

// GitAdapter drives a local git checkout via subprocess. It serializes
// merge attempts with a mutex since a bare working copy can only have
// one merge in flight at a time — concurrent simulate/execute calls would
// otherwise race on the same index and working tree.
type GitAdapter struct {
	repoDir string
	timeout time.Duration
	mu      sync.Mutex
}

// New returns a GitAdapter operating against the git working copy at
// repoDir, bounding every subprocess call by timeout (spec.md §5's
// default 300s check/SCM timeout).
func New(repoDir string, timeout time.Duration) *GitAdapter {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &GitAdapter{repoDir: repoDir, timeout: timeout}
}

func (g *GitAdapter) run(ctx context.Context, op string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &Error{Op: op, Stderr: stderr.String(), Wrapped: err}
	}
	return stdout.String(), nil
}

// SimulateMerge dry-runs the merge of source into target with
// git merge-tree, so the real working copy is never mutated.
func (g *GitAdapter) SimulateMerge(ctx context.Context, source, target string) (models.Simulation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sim := models.Simulation{Source: source, Target: target, Timestamp: time.Now().UTC()}

	mergeBase, err := g.run(ctx, "merge-base", "merge-base", target, source)
	if err != nil {
		return models.Simulation{}, err
	}
	mergeBase = strings.TrimSpace(mergeBase)

	out, err := g.run(ctx, "merge-tree", "merge-tree", mergeBase, target, source)
	if err != nil {
		// A non-zero exit from merge-tree is reported as a
		// non-mergeable result rather than a transport failure.
		var scmErr *Error
		if errors.As(err, &scmErr) {
			sim.Mergeable = false
			sim.Conflicts = parseConflictPaths(scmErr.Stderr + out)
		} else {
			return models.Simulation{}, err
		}
	} else {
		sim.Mergeable = !strings.Contains(out, "<<<<<<<")
		if !sim.Mergeable {
			sim.Conflicts = parseConflictPaths(out)
		}
	}

	diffOut, err := g.run(ctx, "diff-name", "diff", "--name-only", mergeBase, source)
	if err != nil {
		return models.Simulation{}, err
	}
	sim.FilesChanged = splitNonEmpty(diffOut)

	return sim, nil
}

// ExecuteMergeSafe merges source into target in the real working copy.
// Any failure triggers a hard reset back to the pre-merge HEAD so the
// working copy is left exactly as it was found.
func (g *GitAdapter) ExecuteMergeSafe(ctx context.Context, source, target string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	preHead, err := g.run(ctx, "rev-parse", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	preHead = strings.TrimSpace(preHead)

	if _, err := g.run(ctx, "checkout", "checkout", target); err != nil {
		return "", err
	}

	if _, err := g.run(ctx, "merge", "merge", "--no-ff", "--no-edit", source); err != nil {
		_, _ = g.run(ctx, "merge-abort", "merge", "--abort")
		_, _ = g.run(ctx, "reset", "reset", "--hard", preHead)
		return "", err
	}

	sha, err := g.run(ctx, "rev-parse-head", "rev-parse", "HEAD")
	if err != nil {
		_, _ = g.run(ctx, "reset", "reset", "--hard", preHead)
		return "", err
	}
	return strings.TrimSpace(sha), nil
}

// LogEntries returns up to max commits, newest-first.
func (g *GitAdapter) LogEntries(ctx context.Context, max int) ([]models.LogEntry, error) {
	if max <= 0 {
		max = 50
	}
	const sep = "\x1f"
	format := strings.Join([]string{"%H", "%an", "%aI", "%s"}, sep)
	out, err := g.run(ctx, "log", "log", "-n", strconv.Itoa(max), "--name-only", "--pretty=format:"+sep+format)
	if err != nil {
		return nil, err
	}
	return parseLogEntries(out, sep), nil
}

func parseLogEntries(raw, sep string) []models.LogEntry {
	var entries []models.LogEntry
	// Each commit's header line starts with sep and its fields are also
	// sep-separated, so commits are split on a newline followed by sep.
	blocks := strings.Split(raw, "\n"+sep)
	for _, block := range blocks {
		block = strings.TrimPrefix(strings.TrimSpace(block), sep)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		fields := strings.SplitN(lines[0], sep, 4)
		if len(fields) < 4 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, fields[2])
		entries = append(entries, models.LogEntry{
			SHA:     fields[0],
			Author:  fields[1],
			Date:    date,
			Subject: fields[3],
			Files:   splitNonEmpty(strings.Join(lines[1:], "\n")),
		})
	}
	return entries
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseConflictPaths(out string) []string {
	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	current := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "CONFLICT") {
			if idx := strings.LastIndex(line, " "); idx >= 0 {
				add(strings.Trim(line[idx+1:], "()"))
			}
			continue
		}
		// Trivial merge-tree output names the file on its "our"/"their"
		// stage lines and marks a conflicted hunk with "<<<<<<<".
		if f := strings.Fields(line); len(f) == 4 && (f[0] == "our" || f[0] == "their") && len(f[2]) == 40 {
			current = f[3]
		} else if strings.Contains(line, "<<<<<<<") && current != "" {
			add(current)
		}
	}
	return paths
}

var _ Adapter = (*GitAdapter)(nil)
