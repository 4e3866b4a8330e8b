// Package discovery walks a workspace, applying path policy and ignore rules,
// and classifies candidate files by extension/filename ahead of indexing.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/ignore"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
)

// HiddenAllowlist are basenames discovered regardless of extension; a
// hidden directory with one of these names is also walked.
var HiddenAllowlist = map[string]bool{
	"Makefile": true, "Dockerfile": true, ".gitignore": true,
	"tsconfig.json": true, ".env.example": true, "GNUmakefile": true,
}

// IndexableExtensions are extensions discovered by default.
var IndexableExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".c": true, ".h": true,
	".cc": true, ".cpp": true, ".hpp": true, ".rb": true, ".php": true,
	".md": true, ".yaml": true, ".yml": true, ".json": true, ".toml": true,
	".sh": true, ".sql": true,
}

// File is one discovered candidate, not yet read.
type File struct {
	RelPath string
	AbsPath string
	Size    int64
}

// Discoverer walks a workspace under a Policy + ignore Set.
type Discoverer struct {
	policy *pathpolicy.Policy
	rules  *ignore.Set
}

// New constructs a Discoverer.
func New(policy *pathpolicy.Policy, rules *ignore.Set) *Discoverer {
	return &Discoverer{policy: policy, rules: rules}
}

// Walk performs a single recursive pass over the workspace, returning every
// candidate file that survives the blocklist/hidden-dir/extension/ignore
// filters. File sizes are recorded, not filtered on.
func (d *Discoverer) Walk(ctx context.Context) ([]File, error) {
	timer := logging.StartTimer(logging.CategoryDiscovery, "Walk")
	defer timer.Stop()

	root := d.policy.Root()
	var out []File

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			logging.DiscoveryWarn("walk error at %s: %v", path, walkErr)
			return nil
		}
		if path == root {
			return nil
		}

		rel, ok := d.policy.Relativize(path)
		if !ok {
			return nil
		}

		if info.IsDir() {
			name := info.Name()
			for _, blocked := range ignore.BuiltinDirBlocklist {
				if name == blocked {
					return filepath.SkipDir
				}
			}
			if isHidden(name) && !HiddenAllowlist[name] {
				return filepath.SkipDir
			}
			if d.rules.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.classify(info.Name()) {
			return nil
		}
		if d.rules.ShouldIgnore(rel, false) {
			return nil
		}

		out = append(out, File{RelPath: rel, AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Discovery("walk discovered %d candidate files under %s", len(out), root)
	return out, nil
}

func (d *Discoverer) classify(basename string) bool {
	if HiddenAllowlist[basename] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(basename))
	return IndexableExtensions[ext]
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
