package portal

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core/user"
)

// Paths of the public (unauthenticated) surface.
const (
	LandingPath = "/"
	PortalPath  = "/portal"
	LoginPath   = "/login"
)

// ErrUnknownRole indicates an unrecognized role reached the navigation
// config. This is a data-integrity problem upstream (identity metadata),
// not a runtime branch: callers must fail fast, never render an empty menu.
var ErrUnknownRole = errors.New("unrecognized role in navigation config")

// NavEntry is one item of a role's section tree.
type NavEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// The mapping is fixed and total: every role has a non-empty, distinct
// entry list.
var navTrees = map[string][]NavEntry{
	user.RoleAdmin: {
		{Label: "Dashboard", Path: "/admin"},
		{Label: "Manage Staff", Path: "/admin/teachers"},
		{Label: "Manage Students", Path: "/admin/students"},
		{Label: "Classes", Path: "/admin/classes"},
		{Label: "Financials", Path: "/admin/fees"},
		{Label: "Announcements", Path: "/admin/announcements"},
	},
	user.RoleTeacher: {
		{Label: "Overview", Path: "/teacher"},
		{Label: "Attendance", Path: "/teacher/attendance"},
		{Label: "My Classes", Path: "/teacher/classes"},
		{Label: "Fee Records", Path: "/teacher/fees"},
		{Label: "Bulletins", Path: "/teacher/announcements"},
	},
	user.RoleStudent: {
		{Label: "Profile", Path: "/student"},
		{Label: "My Attendance", Path: "/student/attendance"},
		{Label: "Tuition & Fees", Path: "/student/fees"},
		{Label: "Bulletins", Path: "/student/announcements"},
	},
}

var defaultTabs = map[string]string{
	user.RoleAdmin:   "overview",
	user.RoleTeacher: "classes",
	user.RoleStudent: "overview",
}

// Nav returns the ordered navigation entries for a role.
func Nav(role string) ([]NavEntry, error) {
	entries, ok := navTrees[role]
	if !ok {
		return nil, errors.Wrap(ErrUnknownRole, role)
	}
	out := make([]NavEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// BasePath returns the landing route of a role's dashboard.
func BasePath(role string) (string, error) {
	if _, ok := navTrees[role]; !ok {
		return "", errors.Wrap(ErrUnknownRole, role)
	}
	return "/" + role, nil
}

// DefaultTab returns the tab shown on a role's base path.
func DefaultTab(role string) (string, error) {
	tab, ok := defaultTabs[role]
	if !ok {
		return "", errors.Wrap(ErrUnknownRole, role)
	}
	return tab, nil
}

// ActiveEntry resolves the highlighted navigation entry from the current
// path's last segment. A segment matching no entry falls back to the
// first entry so that index routes highlight correctly.
func ActiveEntry(role, path string) (NavEntry, error) {
	entries, err := Nav(role)
	if err != nil {
		return NavEntry{}, err
	}
	seg := lastSegment(path)
	for _, entry := range entries {
		if lastSegment(entry.Path) == seg {
			return entry, nil
		}
	}
	return entries[0], nil
}

// ActiveTab resolves the dashboard tab from the current path, using the
// same tolerant matching rule as ActiveEntry: the base path and unknown
// segments resolve to the role's default tab.
func ActiveTab(role, path string) (string, error) {
	def, err := DefaultTab(role)
	if err != nil {
		return "", err
	}
	seg := lastSegment(path)
	if seg == role || seg == "" {
		return def, nil
	}
	for _, entry := range navTrees[role] {
		if s := lastSegment(entry.Path); s == seg && s != role {
			return seg, nil
		}
	}
	return def, nil
}

// RequiredRoles maps a navigable path to the roles allowed on it.
// known reports whether the path belongs to the navigable surface at all;
// unknown paths redirect to the landing route.
func RequiredRoles(path string) (allowed []string, known bool) {
	switch {
	case path == LandingPath, path == PortalPath, path == LoginPath:
		return nil, true
	case path == "/admin", strings.HasPrefix(path, "/admin/"):
		return []string{user.RoleAdmin}, true
	case path == "/teacher", strings.HasPrefix(path, "/teacher/"):
		return []string{user.RoleTeacher}, true
	case path == "/student", strings.HasPrefix(path, "/student/"):
		return []string{user.RoleStudent}, true
	}
	return nil, false
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
