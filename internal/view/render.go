package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the stylesheet and other assets, rooted so that
// "styles.css" is at the top level.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("view: static assets: %v", err))
	}
	return sub
}

// Document is the data the board template executes against.
type Document struct {
	Page
	// CSRFField is the hidden input carrying the form token, or empty when
	// CSRF protection is off.
	CSRFField template.HTML
	tr        Translator
}

// NewDocument pairs a page with the translator for its static labels.
func NewDocument(page Page, tr Translator, csrfField template.HTML) Document {
	return Document{Page: page, CSRFField: csrfField, tr: tr}
}

// T renders a static label.
func (d Document) T(key string) string {
	return d.tr.T(key, nil)
}

// Renderer executes the embedded board template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Board writes the full board page.
func (r *Renderer) Board(w io.Writer, doc Document) error {
	if err := r.tmpl.ExecuteTemplate(w, "board.html", doc); err != nil {
		return fmt.Errorf("render board: %w", err)
	}
	return nil
}

// BannerCSS writes the rule that hides a visible message once remaining has
// elapsed. The page links it only while a message is up.
func BannerCSS(w io.Writer, remaining time.Duration) error {
	_, err := fmt.Fprintf(w, "#message:not(.hidden) {\n  animation: message-expire 0s linear %dms forwards;\n}\n",
		remaining.Milliseconds())
	return err
}
