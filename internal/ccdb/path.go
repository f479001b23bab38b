package ccdb

import (
	"fmt"
	"strings"
)

// Path is an absolute, slash-delimited namespace path locating a constants
// table or directory, e.g. "/ANALYSIS/accidental_scaling_factor". Paths are
// immutable once published by the store.
type Path string

// ParsePath validates s as an absolute path. Allowed characters are ASCII
// letters, digits, '_', '-', and '/'.
func ParsePath(s string) (Path, error) {
	if !strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("ccdb: path %q is not absolute", s)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '_' || r == '-':
		default:
			return "", fmt.Errorf("ccdb: illegal character %q in path %q", r, s)
		}
	}
	return Path(s), nil
}

// IsRoot reports whether p is the namespace root.
func (p Path) IsRoot() bool { return p == "/" }

// Name returns the final path segment.
func (p Path) Name() string {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Parent returns the containing directory path, or false at the root.
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() || p == "" {
		return "", false
	}
	s := string(p)
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return "/", true
	}
	return Path(s[:i]), true
}

// NormalizePath resolves rel against base, collapsing ".", "..", and empty
// segments. An absolute rel ignores base.
func NormalizePath(base, rel string) Path {
	var segments []string
	push := func(value string) {
		for _, part := range strings.Split(value, "/") {
			switch part {
			case "", ".":
			case "..":
				if len(segments) > 0 {
					segments = segments[:len(segments)-1]
				}
			default:
				segments = append(segments, part)
			}
		}
	}
	if strings.HasPrefix(rel, "/") {
		push(rel)
	} else {
		push(base)
		push(rel)
	}
	if len(segments) == 0 {
		return "/"
	}
	return Path("/" + strings.Join(segments, "/"))
}
