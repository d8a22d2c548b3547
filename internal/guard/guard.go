// Package guard decides whether a page request may proceed based on whether
// the session has a selected account.
package guard

// Decision is the routing verdict for a page request.
type Decision int

const (
	Allow Decision = iota
	RedirectHome
	RedirectProtected
)

const (
	HomePath      = "/"
	ProtectedPath = "/record_voice" // default restricted page
)

var restricted = map[string]bool{
	"/protected":    true,
	"/record_voice": true,
}

// Restricted reports whether path requires a selected account.
func Restricted(path string) bool {
	return restricted[path]
}

// Decide returns the verdict for path. A missing account means logged out.
func Decide(path string, hasAccount bool) Decision {
	switch {
	case !hasAccount && Restricted(path):
		return RedirectHome
	case hasAccount && !Restricted(path):
		return RedirectProtected
	default:
		return Allow
	}
}

// Location returns the redirect target, or "" for Allow.
func (d Decision) Location() string {
	switch d {
	case RedirectHome:
		return HomePath
	case RedirectProtected:
		return ProtectedPath
	default:
		return ""
	}
}

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectHome:
		return "redirect_home"
	case RedirectProtected:
		return "redirect_protected"
	default:
		return "unknown"
	}
}
