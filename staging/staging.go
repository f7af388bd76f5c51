// Package staging owns the temporary directories a run downloads into and
// packs outputs in.
package staging

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Policy decides what Cleanup removes.
type Policy string

const (
	// CleanupOnSuccess removes the areas after a successful run and keeps
	// them for inspection after a failure.
	CleanupOnSuccess Policy = "on-success"
	CleanupAlways    Policy = "always"
	CleanupNever     Policy = "never"
)

// ParsePolicy validates a policy name. The empty string means on-success.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(s)); p {
	case "":
		return CleanupOnSuccess, nil
	case CleanupOnSuccess, CleanupAlways, CleanupNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cleanup policy %q (want on-success, always or never)", s)
	}
}

// Area is the pair of staging directories owned by a single run. The
// directories are created on first use. An Area is safe for concurrent use.
type Area struct {
	root   string
	policy Policy

	mu       sync.Mutex
	inbound  string
	outbound string
}

// New returns an Area whose directories will live under root, or under the
// system temporary directory when root is empty.
func New(root string, policy Policy) *Area {
	if policy == "" {
		policy = CleanupOnSuccess
	}
	return &Area{root: root, policy: policy}
}

// Policy returns the cleanup policy of the area.
func (a *Area) Policy() Policy { return a.policy }

// Inbound returns the directory remote inputs are fetched and unpacked into.
func (a *Area) Inbound() (string, error) {
	return a.dir(&a.inbound, "in-*")
}

// Outbound returns the directory outputs are packed in before being pushed.
func (a *Area) Outbound() (string, error) {
	return a.dir(&a.outbound, "out-*")
}

func (a *Area) dir(slot *string, pattern string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if *slot != "" {
		return *slot, nil
	}
	if a.root != "" {
		if err := os.MkdirAll(a.root, 0o755); err != nil {
			return "", fmt.Errorf("failed to create staging root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(a.root, "gstage-"+pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	*slot = dir
	return dir, nil
}

// InboundDir creates a fresh directory inside the inbound area.
func (a *Area) InboundDir(pattern string) (string, error) {
	return a.subdir(a.Inbound, pattern)
}

// OutboundDir creates a fresh directory inside the outbound area.
func (a *Area) OutboundDir(pattern string) (string, error) {
	return a.subdir(a.Outbound, pattern)
}

func (a *Area) subdir(parent func() (string, error), pattern string) (string, error) {
	root, err := parent()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}

// TempFile reserves a new empty file in the outbound area and returns its
// path.
func (a *Area) TempFile(pattern string) (string, error) {
	out, err := a.Outbound()
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(out, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// Contains reports whether path lies inside one of the area's directories.
func (a *Area) Contains(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, dir := range []string{a.inbound, a.outbound} {
		if dir != "" && within(dir, path) {
			return true
		}
	}
	return false
}

// Dirs returns the directories created so far.
func (a *Area) Dirs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var dirs []string
	for _, dir := range []string{a.inbound, a.outbound} {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Cleanup removes the area's directories according to the policy. success
// tells whether the run finished without error. It returns the directories
// that were kept.
func (a *Area) Cleanup(success bool) (kept []string, err error) {
	remove := a.policy == CleanupAlways || (a.policy == CleanupOnSuccess && success)

	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, slot := range []*string{&a.inbound, &a.outbound} {
		if *slot == "" {
			continue
		}
		if !remove {
			kept = append(kept, *slot)
			continue
		}
		if err := os.RemoveAll(*slot); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", *slot, err))
			kept = append(kept, *slot)
			continue
		}
		*slot = ""
	}
	return kept, errors.Join(errs...)
}
