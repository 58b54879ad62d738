// Package theme resolves the learner's light/dark preference. An explicit
// stored choice always wins; without one the operating system preference
// decides.
package theme

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Key is the fixed storage key of the preference, shared by the browser
// cookie and the CLI preference store.
const Key = "darkMode"

// HintHeader is the client hint carrying the browser color scheme
const HintHeader = "Sec-CH-Prefers-Color-Scheme"

// cookieMaxAge keeps the browser preference for a year
const cookieMaxAge = 365 * 24 * time.Hour

// Mode is a resolved theme
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ModeOf converts a dark flag to a Mode
func ModeOf(dark bool) Mode {
	if dark {
		return Dark
	}
	return Light
}

// Resolve returns the effective dark flag: the stored preference when
// present, otherwise the system preference.
func Resolve(stored *bool, systemDark bool) bool {
	if stored != nil {
		return *stored
	}
	return systemDark
}

// FromRequest reads the stored preference cookie and the system hint from r
func FromRequest(r *http.Request) (stored *bool, systemDark bool) {
	if c, err := r.Cookie(Key); err == nil {
		if v, err := strconv.ParseBool(c.Value); err == nil {
			stored = &v
		}
	}
	hint := strings.Trim(strings.TrimSpace(r.Header.Get(HintHeader)), `"`)
	return stored, strings.EqualFold(hint, "dark")
}

// IsDark resolves the preference of r
func IsDark(r *http.Request) bool {
	return Resolve(FromRequest(r))
}

// Toggle flips the effective preference of r, stores it in the response
// cookie and returns the new value.
func Toggle(w http.ResponseWriter, r *http.Request, secure bool) bool {
	dark := !IsDark(r)
	SetCookie(w, dark, secure)
	return dark
}

// SetCookie stores the preference in the browser. The cookie is readable
// by scripts so the page can apply it before first paint.
func SetCookie(w http.ResponseWriter, dark bool, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     Key,
		Value:    strconv.FormatBool(dark),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AcceptCH advertises the color scheme client hint
func AcceptCH(w http.ResponseWriter) {
	w.Header().Set("Accept-CH", HintHeader)
	w.Header().Add("Vary", HintHeader)
}

// TerminalPrefersDark guesses the terminal background from COLORFGBG
// ("fg;bg" or "fg;default;bg"). Background colors 0-6 and 8 are dark.
// Unknown values fall back to dark, the common terminal default.
func TerminalPrefersDark(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	v := getenv("COLORFGBG")
	if v == "" {
		return true
	}
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return true
	}
	return bg <= 6 || bg == 8
}
