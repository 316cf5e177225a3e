package render

import (
	"html/template"
	"log/slog"
	"sync"

	"github.com/terra-clan/studyhub/internal/catalog"
	"github.com/terra-clan/studyhub/internal/models"
)

// Snapshot keeps the most recently rendered catalog fragments so the index
// page can be served without re-rendering. It implements catalog.Display.
type Snapshot struct {
	r *Renderer

	mu       sync.RWMutex
	grid     template.HTML
	featured template.HTML
	stats    template.HTML
}

// NewSnapshot creates a snapshot with empty-catalog fragments
func NewSnapshot(r *Renderer) *Snapshot {
	s := &Snapshot{r: r}
	s.ShowGrid(catalog.Grid{Placeholder: catalog.EmptyPlaceholder})
	s.ShowFeatured(nil)
	s.ShowStats(catalog.StatsLine(0))
	return s
}

func (s *Snapshot) store(name string, dst *template.HTML, data interface{}) {
	html, err := s.r.fragment(name, data)
	if err != nil {
		slog.Error("failed to render fragment", "fragment", name, "error", err)
		return
	}
	s.mu.Lock()
	*dst = html
	s.mu.Unlock()
}

func (s *Snapshot) ShowGrid(grid catalog.Grid) {
	s.store("grid", &s.grid, grid)
}

func (s *Snapshot) ShowFeatured(entries []models.ResourceEntry) {
	s.store("featured", &s.featured, entries)
}

func (s *Snapshot) ShowStats(stats string) {
	s.store("stats", &s.stats, stats)
}

// ShowPreview does nothing: previews are per learner and are rendered
// per request, never into the shared page.
func (s *Snapshot) ShowPreview(preview models.Preview) {}

// Page returns page data filled with the current fragments
func (s *Snapshot) Page(query string, badges []models.Badge) PageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PageData{
		Title:    DefaultTitle,
		Query:    query,
		Stats:    s.stats,
		Featured: s.featured,
		Grid:     s.grid,
		Badges:   badges,
	}
}
