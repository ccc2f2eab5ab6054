// Package artifacts holds the candidate paths a collection run looks at.
package artifacts

import (
	"path/filepath"
	"strings"
)

// List is an ordered, immutable set of candidate paths. The zero value is an
// empty list.
type List struct {
	paths []string
}

// New returns a list of the given paths in order. Paths are cleaned and
// duplicates are dropped, keeping the first occurrence.
func New(paths ...string) List {
	return List{}.With(paths...)
}

// Default returns the built-in forensic artifact list. home is the invoking
// user's home directory and is used to expand user-level entries; when empty
// those entries are left out.
func Default(home string) List {
	var paths []string
	if home != "" {
		paths = append(paths,
			filepath.Join(home, ".bash_history"),
			filepath.Join(home, ".ssh", "known_hosts"),
		)
	}
	return New(append(paths, systemPaths...)...)
}

var systemPaths = []string{
	"/root/.bash_history",
	"/root/.ssh/known_hosts",

	"/var/adm/wtmp",
	"/var/db/application_usage.sqlite",
	"/var/log",
	"/var/run/utmp",
	"/var/run/wtmp",

	"/etc/passwd",
	"/etc/group",
	"/etc/hosts",
	"/etc/hosts.allow",
	"/etc/hosts.deny",
	"/etc/rc.d",
	"/etc/utmp",
	"/etc/httpd/logs",

	// macOS startup items and configuration
	"/System/Library/LaunchAgents",
	"/System/Library/LaunchDaemons",
	"/System/Library/StartupItems",
	"/Library/LaunchAgents",
	"/Library/LaunchDaemons",
	"/Library/Preferences/SystemConfiguration",
	"/Library/Receipts/InstallHistory.plist",
	"/Library/StartupItems",
}

// With returns a new list with paths appended. l is not modified.
func (l List) With(paths ...string) List {
	out := List{paths: make([]string, 0, len(l.paths)+len(paths))}
	seen := make(map[string]struct{}, cap(out.paths))
	for _, p := range append(append([]string{}, l.paths...), paths...) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out.paths = append(out.paths, p)
	}
	return out
}

// Paths returns a copy of the candidate paths.
func (l List) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Len returns the number of candidate paths.
func (l List) Len() int {
	return len(l.paths)
}
