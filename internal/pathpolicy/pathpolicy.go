// Package pathpolicy validates and normalizes workspace-relative paths,
// rejecting traversal, absolute inputs, and paths that resolve outside the
// workspace root.
package pathpolicy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// DefaultMaxFileBytes is the default oversize threshold for read operations.
const DefaultMaxFileBytes int64 = 1 << 20 // 1 MiB

// Policy binds path resolution to a single workspace root.
type Policy struct {
	root         string
	maxFileBytes int64
}

// New returns a Policy rooted at the canonicalized workspaceRoot.
func New(workspaceRoot string) (*Policy, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, daemonerr.Newf(daemonerr.ConfigInvalid, "resolving workspace root: %v", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Workspace may not exist yet (fresh daemon); fall back to the
		// absolute, non-symlink-resolved path rather than failing startup.
		canon = abs
	}
	return &Policy{root: canon, maxFileBytes: DefaultMaxFileBytes}, nil
}

// WithMaxFileBytes overrides the oversize threshold.
func (p *Policy) WithMaxFileBytes(n int64) *Policy {
	p.maxFileBytes = n
	return p
}

// Root returns the canonical workspace root.
func (p *Policy) Root() string {
	return p.root
}

// Resolve validates a workspace-relative input path and returns its absolute
// form under the workspace root, evaluated in the order spec.md §4.1 lists.
func (p *Policy) Resolve(input string) (string, *daemonerr.Error) {
	if filepath.IsAbs(input) || strings.HasPrefix(input, "/") {
		logging.PathPolicyWarn("rejected absolute path: %s", input)
		return "", daemonerr.New(daemonerr.PathTraversal, "path must not be absolute: "+input)
	}

	normalized := filepath.ToSlash(filepath.Clean(input))
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			logging.PathPolicyWarn("rejected traversal segment in: %s", input)
			return "", daemonerr.New(daemonerr.PathTraversal, "path must not contain '..': "+input)
		}
	}

	full := filepath.Join(p.root, normalized)
	fullClean := filepath.Clean(full)
	if fullClean != p.root && !strings.HasPrefix(fullClean, p.root+string(filepath.Separator)) {
		logging.PathPolicyWarn("rejected path outside workspace: %s -> %s", input, fullClean)
		return "", daemonerr.New(daemonerr.OutsideWorkspace, "path resolves outside workspace: "+input)
	}

	return fullClean, nil
}

// ResolveForRead validates the path and enforces the oversize limit by
// stat'ing the resolved file.
func (p *Policy) ResolveForRead(input string) (string, *daemonerr.Error) {
	full, err := p.Resolve(input)
	if err != nil {
		return "", err
	}
	info, statErr := os.Stat(full)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", daemonerr.New(daemonerr.FileNotFound, "no such file: "+input)
		}
		return "", daemonerr.Wrap(statErr)
	}
	if info.Size() > p.maxFileBytes {
		return "", daemonerr.Newf(daemonerr.FileTooLarge, "file %s exceeds %d bytes", input, p.maxFileBytes)
	}
	return full, nil
}

// Relativize converts an absolute path back to a workspace-relative,
// forward-slash path. Returns false if the path is not under the workspace.
func (p *Policy) Relativize(absPath string) (string, bool) {
	rel, err := filepath.Rel(p.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
