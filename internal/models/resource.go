package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ResourceEntry is a single study material in the catalog
type ResourceEntry struct {
	Name        string    `json:"name" yaml:"name" validate:"required"`
	Path        string    `json:"path" yaml:"path" validate:"required"`
	Ext         string    `json:"ext" yaml:"ext"`
	Type        string    `json:"type" yaml:"type"`
	SizeHuman   string    `json:"size_human" yaml:"size_human"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string  `json:"tags" yaml:"tags"`
	Thumbnail   string    `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// timestampLayouts are tried in order; zoneless values are taken as UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339, zoneless ISO 8601 (as Python's
// isoformat writes) and plain dates. Unparseable values give the zero time
// and false.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// resourceEntryFile accepts the current field names and the
// {title, summary, file, preview} form written by older ingesters.
type resourceEntryFile struct {
	Name        string   `json:"name" yaml:"name"`
	Title       string   `json:"title" yaml:"title"`
	Path        string   `json:"path" yaml:"path"`
	File        string   `json:"file" yaml:"file"`
	Ext         string   `json:"ext" yaml:"ext"`
	Type        string   `json:"type" yaml:"type"`
	SizeHuman   string   `json:"size_human" yaml:"size_human"`
	Description string   `json:"description" yaml:"description"`
	Summary     string   `json:"summary" yaml:"summary"`
	Tags        []string `json:"tags" yaml:"tags"`
	Thumbnail   string   `json:"thumbnail" yaml:"thumbnail"`
	Preview     string   `json:"preview" yaml:"preview"`
	UploadedAt  string   `json:"uploaded_at" yaml:"uploaded_at"`
}

func (f resourceEntryFile) normalize() ResourceEntry {
	e := ResourceEntry{
		Name:        firstNonEmpty(f.Name, f.Title),
		Path:        firstNonEmpty(f.Path, f.File),
		Ext:         f.Ext,
		Type:        f.Type,
		SizeHuman:   f.SizeHuman,
		Description: firstNonEmpty(f.Description, f.Summary),
		Tags:        f.Tags,
		Thumbnail:   firstNonEmpty(f.Thumbnail, f.Preview),
	}
	e.UploadedAt, _ = ParseTimestamp(f.UploadedAt)
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// UnmarshalJSON decodes either entry shape
func (e *ResourceEntry) UnmarshalJSON(data []byte) error {
	var f resourceEntryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*e = f.normalize()
	return nil
}

// UnmarshalYAML decodes either entry shape
func (e *ResourceEntry) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var f resourceEntryFile
	if err := unmarshal(&f); err != nil {
		return err
	}
	*e = f.normalize()
	return nil
}

// PreviewKind classifies how a resource can be shown inline
type PreviewKind string

const (
	PreviewImage       PreviewKind = "image"
	PreviewPDF         PreviewKind = "pdf"
	PreviewUnsupported PreviewKind = "unsupported"
)

// Preview describes an inline viewer for a resource path
type Preview struct {
	Kind PreviewKind `json:"kind"`
	Path string      `json:"path"`
}

// CatalogResponse is returned by the catalog listing endpoint
type CatalogResponse struct {
	Resources []ResourceEntry `json:"resources"`
	Total     int             `json:"total"`
	Stats     string          `json:"stats"`
	Query     string          `json:"query,omitempty"`
}
