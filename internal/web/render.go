package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/nerrad567/secretgate/internal/assets"
)

// Page templates, each rendered inside layout.html.
const (
	pageHome     = "home"
	pageLogin    = "login"
	pageRegister = "register"
	pageSecrets  = "secrets"
	pageError    = "error"
)

// pageData is the view model shared by every page.
type pageData struct {
	AppName       string
	Title         string
	Notice        *Notice
	Error         string
	Identifier    string
	GoogleEnabled bool
	Message       string
	RequestID     string
}

func parsePages() (map[string]*template.Template, error) {
	fsys := assets.Templates()
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageHome, pageLogin, pageRegister, pageSecrets, pageError} {
		tmpl, err := template.ParseFS(fsys, "layout.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := s.pages[page]
	if !ok {
		s.logger.Error("unknown page template", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data.AppName = s.cfg.App.Name
	data.GoogleEnabled = s.google != nil
	if data.RequestID == "" {
		data.RequestID = requestIDFrom(r.Context())
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("rendering page failed",
			"page", page,
			"error", err,
			"request_id", data.RequestID,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	buf.WriteTo(w)
}
