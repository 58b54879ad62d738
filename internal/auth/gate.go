package auth

import (
	"net/url"
	"strings"
)

// State is the authentication state of a request
type State int

const (
	// StateAnonymous means no valid session was presented
	StateAnonymous State = iota
	// StateAuthenticating means the session is still being resolved
	StateAuthenticating
	// StateAuthenticated means the request carries a valid session
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Well-known paths
const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathCallback  = "/callback"
	PathError     = "/error"
	PathDashboard = "/dashboard"
)

// RedirectParam is the query parameter carrying the post-login target
const RedirectParam = "redirect"

var authPages = map[string]bool{
	PathLogin:    true,
	PathSignup:   true,
	PathCallback: true,
	PathError:    true,
}

var protectedPrefixes = []string{PathDashboard}

// Target is where a request should end up. Stay means render the requested
// page as is.
type Target struct {
	Path string
	Stay bool
}

// IsAuthPage reports whether path is one of the sign-in flow pages
func IsAuthPage(path string) bool {
	return authPages[strings.TrimSuffix(path, "/")]
}

// IsProtected reports whether path requires a session
func IsProtected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// NextTarget decides where a request for requested (path plus optional
// query) goes given the session state and the redirect parameter. Redirect
// targets are always same-origin paths; anything else is ignored.
func NextTarget(state State, requested, redirect string) Target {
	path := pathOf(requested)
	stay := Target{Path: requested, Stay: true}

	switch state {
	case StateAuthenticating:
		return stay

	case StateAuthenticated:
		if target, ok := SafeRedirect(redirect); ok && target != requested && !IsAuthPage(pathOf(target)) {
			return Target{Path: target}
		}
		if IsAuthPage(path) {
			return Target{Path: PathDashboard}
		}
		return stay

	default:
		if IsProtected(path) {
			return Target{Path: LoginURL(requested)}
		}
		return stay
	}
}

func pathOf(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return PathHome
	}
	return target
}

// LoginURL returns the login page URL that brings the user back to target
func LoginURL(target string) string {
	if target == "" || target == PathHome {
		return PathLogin
	}
	return PathLogin + "?" + RedirectParam + "=" + url.QueryEscape(target)
}

// SafeRedirect validates a redirect target. Only absolute paths on this
// origin are accepted: no scheme, no host and no protocol-relative "//".
func SafeRedirect(target string) (string, bool) {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "", false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "", false
	}
	if strings.ContainsAny(target, "\\\r\n\t") {
		return "", false
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return target, true
}
