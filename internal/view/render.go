package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names
const (
	PageHome      = "home"
	PageLogin     = "login"
	PageSignup    = "signup"
	PageCallback  = "callback"
	PageError     = "error"
	PageDashboard = "dashboard"
	PageNotFound  = "not_found"
)

var pageNames = []string{PageHome, PageLogin, PageSignup, PageCallback, PageError, PageDashboard, PageNotFound}

// Page is the data every template receives
type Page struct {
	Title     string
	Dark      bool
	User      *domain.User
	Notices   []string
	Error     string
	Redirect  string
	Email     string
	Dashboard *Dashboard
}

// Renderer holds the parsed page templates
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates. Each page is parsed together
// with the shared layout.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes page into w. The page is rendered into a buffer first so
// a template error never produces a half-written response.
func (r *Renderer) Render(w io.Writer, name string, data Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Write renders page as an HTML response with the given status
func (r *Renderer) Write(w http.ResponseWriter, status int, name string, data Page) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
