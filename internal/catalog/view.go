// Package catalog loads the resource catalog and derives everything the
// page shows from it: the grid, featured entries, stats, search results
// and previews.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/metrics"
	"github.com/terra-clan/studyhub/internal/models"
)

const (
	// EmptyPlaceholder replaces the grid when there is nothing to show
	EmptyPlaceholder = "No resources yet. Add files to data/resources/ and push to repo."
	// ErrorPlaceholder replaces the grid when the catalog could not be loaded
	ErrorPlaceholder = "Failed to load resources.json"

	featuredCount = 3
)

// Grid is the rendered state of the resource grid. Exactly one of Entries
// or Placeholder is meaningful.
type Grid struct {
	Entries     []models.ResourceEntry
	Placeholder string
	Failed      bool
}

// Display receives render output. Implementations must not call back
// into the View.
type Display interface {
	ShowGrid(grid Grid)
	ShowFeatured(entries []models.ResourceEntry)
	ShowStats(stats string)
	ShowPreview(preview models.Preview)
}

type nopDisplay struct{}

func (nopDisplay) ShowGrid(Grid)                       {}
func (nopDisplay) ShowFeatured([]models.ResourceEntry) {}
func (nopDisplay) ShowStats(string)                    {}
func (nopDisplay) ShowPreview(models.Preview)          {}

// View owns the loaded catalog and the current filter state
type View struct {
	source  datasource.Source
	display Display
	loads   singleflight.Group

	mu       sync.RWMutex
	catalog  []models.ResourceEntry
	loaded   bool
	loadErr  error
	query    string
	filtered []models.ResourceEntry
	grid     Grid
}

// NewView creates a view over source. display may be nil.
func NewView(source datasource.Source, display Display) *View {
	if display == nil {
		display = nopDisplay{}
	}
	return &View{
		source:  source,
		display: display,
		grid:    Grid{Placeholder: EmptyPlaceholder},
	}
}

// Load fetches the catalog and renders it. Concurrent calls share a single
// fetch. On failure the grid shows ErrorPlaceholder and the catalog is
// empty; the error is returned for logging only.
func (v *View) Load(ctx context.Context) error {
	_, err, shared := v.loads.Do("load", func() (interface{}, error) {
		return nil, v.load(ctx)
	})
	if shared {
		slog.Debug("catalog load deduplicated")
	}
	return err
}

func (v *View) load(ctx context.Context) error {
	entries, err := v.fetch(ctx)

	v.mu.Lock()
	v.loaded = true
	v.loadErr = err
	v.query = ""
	if err != nil {
		v.catalog = nil
		v.filtered = nil
		v.grid = Grid{Placeholder: ErrorPlaceholder, Failed: true}
	} else {
		v.catalog = entries
		v.filtered = entries
		v.grid = gridFor(entries)
	}
	grid := v.grid
	featured := v.featuredLocked()
	stats := v.statsLocked()
	v.mu.Unlock()

	if err != nil {
		metrics.CatalogLoads.WithLabelValues("error").Inc()
		metrics.CatalogSize.Set(0)
		slog.Error("failed to load resources", "error", err)
		v.display.ShowGrid(grid)
		return err
	}

	metrics.CatalogLoads.WithLabelValues("ok").Inc()
	metrics.CatalogSize.Set(float64(len(entries)))
	slog.Info("catalog loaded", "resources", len(entries))

	v.display.ShowGrid(grid)
	v.display.ShowFeatured(featured)
	v.display.ShowStats(stats)
	return nil
}

func (v *View) fetch(ctx context.Context) ([]models.ResourceEntry, error) {
	doc, err := v.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	return DecodeEntries(doc)
}

// gridFor builds the grid for a list, substituting the placeholder for
// an empty one
func gridFor(list []models.ResourceEntry) Grid {
	if len(list) == 0 {
		return Grid{Placeholder: EmptyPlaceholder}
	}
	entries := make([]models.ResourceEntry, len(list))
	copy(entries, list)
	return Grid{Entries: entries}
}

// Render replaces the grid with list. Rendering the same list twice
// yields the same grid.
func (v *View) Render(list []models.ResourceEntry) Grid {
	grid := gridFor(list)

	v.mu.Lock()
	v.grid = grid
	v.mu.Unlock()

	v.display.ShowGrid(grid)
	return grid
}

// normalizeQuery trims and lowercases a search query
func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// searchText is what a query is matched against
func searchText(e models.ResourceEntry) string {
	return strings.ToLower(e.Name + " " + e.Description + " " + strings.Join(e.Tags, " "))
}

func filterEntries(catalog []models.ResourceEntry, q string) []models.ResourceEntry {
	if q == "" {
		out := make([]models.ResourceEntry, len(catalog))
		copy(out, catalog)
		return out
	}
	out := make([]models.ResourceEntry, 0, len(catalog))
	for _, e := range catalog {
		if strings.Contains(searchText(e), q) {
			out = append(out, e)
		}
	}
	return out
}

// Filter returns the entries matching q without touching the view state
func (v *View) Filter(q string) []models.ResourceEntry {
	q = normalizeQuery(q)
	v.mu.RLock()
	defer v.mu.RUnlock()
	return filterEntries(v.catalog, q)
}

// GridFor returns the grid a query would render without touching the view
// state. After a failed load it is the error placeholder.
func (v *View) GridFor(q string) Grid {
	q = normalizeQuery(q)
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.loadErr != nil {
		return Grid{Placeholder: ErrorPlaceholder, Failed: true}
	}
	return gridFor(filterEntries(v.catalog, q))
}

// SetQuery filters the full catalog by q and re-renders the grid
func (v *View) SetQuery(q string) []models.ResourceEntry {
	q = normalizeQuery(q)

	v.mu.Lock()
	filtered := filterEntries(v.catalog, q)
	v.query = q
	v.filtered = filtered
	v.mu.Unlock()

	v.Render(filtered)
	return filtered
}

// Preview classifies path and shows the matching viewer
func (v *View) Preview(path string) models.Preview {
	p := Classify(path)
	v.display.ShowPreview(p)
	return p
}

// Catalog returns the full loaded catalog in source order
func (v *View) Catalog() []models.ResourceEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.ResourceEntry, len(v.catalog))
	copy(out, v.catalog)
	return out
}

// Filtered returns the result of the last SetQuery
func (v *View) Filtered() []models.ResourceEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.ResourceEntry, len(v.filtered))
	copy(out, v.filtered)
	return out
}

// Query returns the normalized query of the last SetQuery
func (v *View) Query() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.query
}

// Grid returns the currently rendered grid
func (v *View) Grid() Grid {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.grid
}

// Featured returns the first three catalog entries
func (v *View) Featured() []models.ResourceEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.featuredLocked()
}

func (v *View) featuredLocked() []models.ResourceEntry {
	n := len(v.catalog)
	if n > featuredCount {
		n = featuredCount
	}
	out := make([]models.ResourceEntry, n)
	copy(out, v.catalog[:n])
	return out
}

// Stats returns the "<n> resources" line
func (v *View) Stats() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.statsLocked()
}

func (v *View) statsLocked() string {
	return StatsLine(len(v.catalog))
}

// StatsLine formats a resource count for display
func StatsLine(n int) string {
	return fmt.Sprintf("%d resources", n)
}

// Ready reports whether a load has completed successfully
func (v *View) Ready() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.loaded {
		return fmt.Errorf("catalog not loaded yet")
	}
	return v.loadErr
}
