package auth

import (
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestNextTarget(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		requested string
		redirect  string
		want      Target
	}{
		{
			name:      "authenticating stays",
			state:     StateAuthenticating,
			requested: "/dashboard",
			want:      Target{Path: "/dashboard", Stay: true},
		},
		{
			name:      "authenticated follows redirect",
			state:     StateAuthenticated,
			requested: "/login?redirect=%2Fdashboard%3Fstep%3D2",
			redirect:  "/dashboard?step=2",
			want:      Target{Path: "/dashboard?step=2"},
		},
		{
			name:      "authenticated ignores external redirect",
			state:     StateAuthenticated,
			requested: "/login",
			redirect:  "https://evil.example/phish",
			want:      Target{Path: "/dashboard"},
		},
		{
			name:      "authenticated ignores redirect back to an auth page",
			state:     StateAuthenticated,
			requested: "/signup",
			redirect:  "/login",
			want:      Target{Path: "/dashboard"},
		},
		{
			name:      "authenticated on login goes to dashboard",
			state:     StateAuthenticated,
			requested: "/login",
			want:      Target{Path: "/dashboard"},
		},
		{
			name:      "authenticated on callback goes to dashboard",
			state:     StateAuthenticated,
			requested: "/callback",
			want:      Target{Path: "/dashboard"},
		},
		{
			name:      "authenticated on dashboard stays",
			state:     StateAuthenticated,
			requested: "/dashboard",
			want:      Target{Path: "/dashboard", Stay: true},
		},
		{
			name:      "authenticated on home stays",
			state:     StateAuthenticated,
			requested: "/",
			want:      Target{Path: "/", Stay: true},
		},
		{
			name:      "anonymous on protected path goes to login",
			state:     StateAnonymous,
			requested: "/dashboard?step=3",
			want:      Target{Path: "/login?redirect=%2Fdashboard%3Fstep%3D3"},
		},
		{
			name:      "anonymous on nested protected path",
			state:     StateAnonymous,
			requested: "/dashboard/settings",
			want:      Target{Path: "/login?redirect=%2Fdashboard%2Fsettings"},
		},
		{
			name:      "anonymous on login keeps redirect",
			state:     StateAnonymous,
			requested: "/login?redirect=%2Fdashboard",
			redirect:  "/dashboard",
			want:      Target{Path: "/login?redirect=%2Fdashboard", Stay: true},
		},
		{
			name:      "anonymous on home stays",
			state:     StateAnonymous,
			requested: "/",
			want:      Target{Path: "/", Stay: true},
		},
		{
			name:      "anonymous on unknown page stays",
			state:     StateAnonymous,
			requested: "/dashboards",
			want:      Target{Path: "/dashboards", Stay: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTarget(tt.state, tt.requested, tt.redirect)
			if got != tt.want {
				t.Errorf("NextTarget(%v, %q, %q) = %+v; want %+v", tt.state, tt.requested, tt.redirect, got, tt.want)
			}
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		target string
		ok     bool
	}{
		{"/dashboard", true},
		{"/dashboard?step=2", true},
		{"", false},
		{"dashboard", false},
		{"//evil.example", false},
		{"/\\evil.example", false},
		{"https://evil.example", false},
		{"javascript:alert(1)", false},
		{"/ok\r\nSet-Cookie: x=y", false},
	}
	for _, tt := range tests {
		if _, ok := SafeRedirect(tt.target); ok != tt.ok {
			t.Errorf("SafeRedirect(%q) ok = %v; want %v", tt.target, ok, tt.ok)
		}
	}
}

func TestLoginURL(t *testing.T) {
	if got := LoginURL("/"); got != "/login" {
		t.Errorf("LoginURL(/) = %q; want /login", got)
	}
	if got := LoginURL("/dashboard"); got != "/login?redirect=%2Fdashboard" {
		t.Errorf("LoginURL(/dashboard) = %q", got)
	}
}

func TestState_String(t *testing.T) {
	if StateAuthenticating.String() != "authenticating" {
		t.Errorf("String() = %q", StateAuthenticating.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("String() = %q", State(99).String())
	}
}

// NextTarget must never send the browser to another origin, whatever the
// redirect parameter holds.
func TestNextTarget_NeverLeavesOrigin(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		state := rapid.SampledFrom([]State{StateAnonymous, StateAuthenticating, StateAuthenticated}).Draw(rt, "state")
		requested := rapid.SampledFrom([]string{"/", "/login", "/signup", "/callback", "/error", "/dashboard", "/dashboard?x=1", "/nope"}).Draw(rt, "requested")
		redirect := rapid.OneOf(
			rapid.String(),
			rapid.SampledFrom([]string{"//evil.example", "https://evil.example", "/\\evil", "http:/x", "/dashboard"}),
			rapid.StringMatching(`/{1,3}[a-z.:@\\]{0,12}`),
		).Draw(rt, "redirect")

		got := NextTarget(state, requested, redirect)

		if !strings.HasPrefix(got.Path, "/") || strings.HasPrefix(got.Path, "//") || strings.HasPrefix(got.Path, "/\\") {
			rt.Fatalf("NextTarget(%v, %q, %q) = %q leaves origin", state, requested, redirect, got.Path)
		}
		u, err := url.Parse(got.Path)
		if err != nil {
			rt.Fatalf("NextTarget returned unparseable %q: %v", got.Path, err)
		}
		if u.Host != "" || u.Scheme != "" {
			rt.Fatalf("NextTarget(%v, %q, %q) = %q has host or scheme", state, requested, redirect, got.Path)
		}
	})
}
