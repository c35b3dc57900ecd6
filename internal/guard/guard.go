// Package guard decides, per navigation, whether a session may render a page.
package guard

import (
	"strings"

	"github.com/spec-kit/logistics-dashboard/internal/access"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// Action is the outcome of a navigation decision.
type Action string

const (
	ActionRender          Action = "render"
	ActionRedirectLogin   Action = "redirect_login"
	ActionRedirectDefault Action = "redirect_default"
)

// Notices shown to the user alongside redirects.
const (
	NoticeLoginRequired = "Please log in to continue"
	NoticeAccessDenied  = "You do not have access to that page"
)

// Decision describes what to do with a navigation.
type Decision struct {
	Action Action `json:"action"`
	Path   string `json:"path"`
	Target string `json:"target,omitempty"`
	Notice string `json:"notice,omitempty"`
}

// Redirect reports whether the decision moves the user elsewhere.
func (d Decision) Redirect() bool {
	return d.Action != ActionRender
}

// Decide applies the navigation policy to path for the given session, which may be nil.
// A session whose role is not a dashboard role counts as signed out.
func Decide(path string, session *domain.Session) Decision {
	path = Normalize(path)

	if session != nil && !session.Role.Valid() {
		session = nil
	}
	if session == nil {
		if path == access.LoginPath {
			return Decision{Action: ActionRender, Path: path}
		}
		return Decision{Action: ActionRedirectLogin, Path: path, Target: access.LoginPath, Notice: NoticeLoginRequired}
	}

	home := access.DefaultRoute(session.Role)
	switch {
	case path == access.RootPath, path == access.LoginPath:
		return Decision{Action: ActionRedirectDefault, Path: path, Target: home}
	case access.Denied(session.Role, path), !access.Allowed(session.Role, path):
		return Decision{Action: ActionRedirectDefault, Path: path, Target: home, Notice: NoticeAccessDenied}
	}
	return Decision{Action: ActionRender, Path: path}
}

// Normalize strips query and fragment, collapses trailing slashes and guarantees a leading slash.
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
