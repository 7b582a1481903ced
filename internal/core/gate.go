package core

import (
	"strings"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Route identifies a top-level view.
type Route string

const (
	RouteRoot  Route = "/"
	RouteLogin Route = "/login"
	RouteTasks Route = "/tasks"
)

// Gate decides which view a path resolves to for a given session.
type Gate struct {
	// Now is used to check token expiry. Defaults to time.Now.
	Now func() time.Time
}

// SessionValid reports whether sess can reach protected views: it must carry
// a token, and a JWT exp claim, if present, must be in the future.
func (g Gate) SessionValid(sess models.Session) bool {
	if !sess.Active() {
		return false
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return !sess.Expired(now())
}

// Resolve maps a requested path to the view that should be shown. Unknown
// paths fall back to the root, which itself resolves to tasks or login.
func (g Gate) Resolve(path string, sess models.Session) Route {
	switch Route(normalizePath(path)) {
	case RouteLogin:
		return RouteLogin
	case RouteTasks, RouteRoot:
		if g.SessionValid(sess) {
			return RouteTasks
		}
		return RouteLogin
	default:
		return g.Resolve(string(RouteRoot), sess)
	}
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
