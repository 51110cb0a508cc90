package agent

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// dangerousCommandPatterns blocks the shell-tool command classes
// spec.md §4.5 names explicitly: recursive deletes at the filesystem
// root, force-push to protected branches, piping remote downloads to
// a shell, and privilege escalation. Supplements the approach used by
// original_source/app/agents/base.py's _is_dangerous_command, which
// the distilled spec describes only abstractly.
var dangerousCommandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+/(\s|$)`),
	regexp.MustCompile(`rm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+/\S*\*`),
	regexp.MustCompile(`push\s+.*--force\b`),
	regexp.MustCompile(`push\s+.*-f\b`),
	regexp.MustCompile(`curl\s+[^|]*\|\s*(sudo\s+)?(ba)?sh\b`),
	regexp.MustCompile(`wget\s+[^|]*\|\s*(sudo\s+)?(ba)?sh\b`),
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bchmod\s+777\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|\s*:&\s*\}\s*;`), // fork bomb
}

// IsDangerousShellCommand reports whether cmd matches a blocked
// command class. The run-shell tool must refuse to execute it.
func IsDangerousShellCommand(cmd string) bool {
	lower := strings.ToLower(cmd)
	for _, pattern := range dangerousCommandPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// ResolveWithinWorkingDir resolves path relative to workingDir and
// returns an error if the result escapes workingDir via `..` segments,
// a symlink-free absolute path outside the root, or similar traversal.
// The write-file and edit-file tools must call this before touching
// disk (spec.md §4.5).
func ResolveWithinWorkingDir(workingDir, path string) (string, error) {
	root, err := filepath.Abs(workingDir)
	if err != nil {
		return "", fmt.Errorf("agent: resolve working dir: %w", err)
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	resolved, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("agent: resolve path: %w", err)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("agent: path %q escapes working directory %q", path, workingDir)
	}
	return resolved, nil
}
