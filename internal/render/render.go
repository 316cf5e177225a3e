// Package render turns catalog, progress and quiz state into HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/terra-clan/studyhub/internal/catalog"
	"github.com/terra-clan/studyhub/internal/models"
)

//go:embed templates/*.html
var tmplFS embed.FS

// DefaultTitle is the page heading
const DefaultTitle = "StudyHub"

// Renderer executes the embedded fragment templates
type Renderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

// New parses the embedded templates. It panics if they do not parse.
func New() *Renderer {
	r := &Renderer{policy: bluemonday.UGCPolicy()}
	r.tmpl = template.Must(template.New("studyhub").Funcs(template.FuncMap{
		"icon":     catalog.IconFor,
		"sanitize": r.sanitize,
		"extLabel": extLabel,
		"date":     formatDate,
		"inc":      func(i int) int { return i + 1 },
	}).ParseFS(tmplFS, "templates/*.html"))
	return r
}

// sanitize strips anything but basic formatting from user-supplied text
func (r *Renderer) sanitize(s string) template.HTML {
	return template.HTML(r.policy.Sanitize(s))
}

func extLabel(ext string) string {
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func (r *Renderer) execute(w io.Writer, name string, data interface{}) error {
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

func (r *Renderer) fragment(name string, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.execute(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Grid writes the resource grid, or its placeholder
func (r *Renderer) Grid(w io.Writer, grid catalog.Grid) error {
	return r.execute(w, "grid", grid)
}

// Featured writes the hero cards
func (r *Renderer) Featured(w io.Writer, entries []models.ResourceEntry) error {
	return r.execute(w, "featured", entries)
}

// Stats writes the stats line
func (r *Renderer) Stats(w io.Writer, stats string) error {
	return r.execute(w, "stats", stats)
}

// Badges writes the unlocked badge list
func (r *Renderer) Badges(w io.Writer, badges []models.Badge) error {
	return r.execute(w, "badges", badges)
}

// Quiz writes the quiz panel for the current question or the final score
func (r *Renderer) Quiz(w io.Writer, state models.QuizState) error {
	return r.execute(w, "quiz", state)
}

// Preview writes the inline viewer for a resource
func (r *Renderer) Preview(w io.Writer, preview models.Preview) error {
	return r.execute(w, "preview", preview)
}

// PageData is everything the index page shows
type PageData struct {
	Title    string
	Query    string
	Stats    template.HTML
	Featured template.HTML
	Grid     template.HTML
	Badges   []models.Badge
}

// Page writes the full index page
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = DefaultTitle
	}
	if data.Badges == nil {
		data.Badges = []models.Badge{}
	}
	return r.execute(w, "page", data)
}
