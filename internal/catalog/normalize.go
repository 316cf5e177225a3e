package catalog

import (
	"log/slog"
	"path"
	"strings"

	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/models"
	"github.com/terra-clan/studyhub/internal/validation"
)

// DecodeEntries decodes a catalog document record by record. Records that
// fail to decode or validate are logged and dropped; only a document that
// is not a list at all is an error.
func DecodeEntries(doc datasource.Document) ([]models.ResourceEntry, error) {
	records, err := doc.Records()
	if err != nil {
		return nil, err
	}
	out := make([]models.ResourceEntry, 0, len(records))
	for i, r := range records {
		var e models.ResourceEntry
		if err := r.Decode(&e); err != nil {
			slog.Warn("skipping undecodable resource entry", "index", i, "origin", doc.Origin, "error", err)
			continue
		}
		if e, ok := normalize(i, e); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// normalize validates an entry once at the load boundary. Entries missing
// required fields are dropped; optional fields are defaulted so nothing
// downstream has to null-check.
func normalize(i int, e models.ResourceEntry) (models.ResourceEntry, bool) {
	e.Name = strings.TrimSpace(e.Name)
	e.Path = strings.TrimSpace(e.Path)

	if err := validation.Struct(&e); err != nil {
		slog.Warn("skipping invalid resource entry", "index", i, "error", err)
		return e, false
	}

	if e.Ext == "" {
		e.Ext = path.Ext(e.Path)
	}
	e.Ext = normalizeExt(e.Ext)
	if e.Type == "" {
		e.Type = string(CategoryFor(e.Ext))
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e, true
}
