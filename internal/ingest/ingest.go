// Package ingest sorts uploaded study files into category directories and
// regenerates the catalog and quiz documents the server reads.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/terra-clan/studyhub/internal/catalog"
	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/models"
)

// Options configures one ingest run
type Options struct {
	UploadsDir    string
	ResourcesFile string
	QuizFile      string
	Now           func() time.Time
	Rand          *rand.Rand
}

// Report summarizes an ingest run
type Report struct {
	Added     []models.ResourceEntry
	Total     int
	Questions int
	// QuizSource is "generated", "existing" or "default"
	QuizSource string
}

// Ingester processes an uploads directory
type Ingester struct {
	opts Options
}

// New creates an Ingester, filling in defaults for unset options
func New(opts Options) *Ingester {
	if opts.UploadsDir == "" {
		opts.UploadsDir = "data/resources"
	}
	if opts.ResourcesFile == "" {
		opts.ResourcesFile = "data/resources.json"
	}
	if opts.QuizFile == "" {
		opts.QuizFile = "data/quiz.json"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Ingester{opts: opts}
}

// Run moves pending uploads, rewrites the resources document and
// regenerates the quiz document
func (g *Ingester) Run() (Report, error) {
	var report Report

	// Read first so an unusable document stops the run before any upload moves.
	existing, err := readResources(g.opts.ResourcesFile)
	if err != nil {
		return report, err
	}

	added, texts, err := g.sortUploads()
	if err != nil {
		return report, err
	}
	report.Added = added

	records := make([]json.RawMessage, 0, len(added)+len(existing.records))
	for _, e := range added {
		data, err := json.Marshal(e)
		if err != nil {
			return report, fmt.Errorf("failed to encode %s: %w", e.Path, err)
		}
		records = append(records, data)
	}
	records = append(records, existing.records...)
	report.Total = len(records)

	if err := writeJSON(g.opts.ResourcesFile, records); err != nil {
		return report, fmt.Errorf("failed to write resources: %w", err)
	}

	all := make([]models.ResourceEntry, 0, len(added)+len(existing.entries))
	all = append(append(all, added...), existing.entries...)
	questions := g.generate(all, texts)
	report.QuizSource = "generated"
	if len(questions) == 0 {
		questions, report.QuizSource = g.fallbackQuestions()
	}
	report.Questions = len(questions)

	if err := writeJSON(g.opts.QuizFile, questions); err != nil {
		return report, fmt.Errorf("failed to write quiz: %w", err)
	}

	slog.Info("ingest complete",
		"added", len(report.Added),
		"total", report.Total,
		"questions", report.Questions,
		"quiz_source", report.QuizSource,
	)
	return report, nil
}

// sortUploads moves each pending file into its bucket and returns the new
// entries with the text extracted from them, keyed by entry path
func (g *Ingester) sortUploads() ([]models.ResourceEntry, map[string]string, error) {
	root := g.opts.UploadsDir
	if err := ensureDirs(root); err != nil {
		return nil, nil, err
	}
	files, err := pendingUploads(root)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]models.ResourceEntry, 0, len(files))
	texts := make(map[string]string)
	for _, f := range files {
		name := f.Name()
		ext := strings.ToLower(filepath.Ext(name))
		bucket := BucketFor(ext)
		dest := filepath.Join(root, bucket.Dir, name)

		if err := os.Rename(filepath.Join(root, name), dest); err != nil {
			return nil, nil, fmt.Errorf("failed to move %s: %w", name, err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to stat %s: %w", dest, err)
		}

		text, err := ExtractText(dest)
		if err != nil {
			slog.Warn("text extraction failed", "file", dest, "error", err)
		}

		entry := models.ResourceEntry{
			Name:        titleFromStem(strings.TrimSuffix(name, filepath.Ext(name))),
			Path:        filepath.ToSlash(dest),
			Ext:         ext,
			Type:        string(catalog.CategoryFor(ext)),
			SizeHuman:   humanize.Bytes(uint64(info.Size())),
			Description: Summarize(text),
			Tags:        []string{bucket.Dir},
			UploadedAt:  g.opts.Now().UTC(),
		}
		if entry.Description == "" {
			entry.Description = bucket.Fallback
		}
		if bucket.isImage() {
			entry.Thumbnail = entry.Path
		}

		slog.Debug("sorted upload", "file", name, "bucket", bucket.Dir, "size", entry.SizeHuman)
		entries = append(entries, entry)
		if text != "" {
			texts[entry.Path] = text
		}
	}
	return entries, texts, nil
}

// generate builds questions for every entry that has text, reading files
// from earlier runs when their text was not extracted in this one
func (g *Ingester) generate(entries []models.ResourceEntry, texts map[string]string) []models.QuizQuestion {
	var out []models.QuizQuestion
	for _, e := range entries {
		text, ok := texts[e.Path]
		if !ok {
			var err error
			if text, err = ExtractText(filepath.FromSlash(e.Path)); err != nil {
				slog.Debug("skipping quiz source", "path", e.Path, "error", err)
				continue
			}
		}
		out = append(out, GenerateQuestions(e.Name, text, g.opts.Rand)...)
	}
	return out
}

func (g *Ingester) fallbackQuestions() ([]models.QuizQuestion, string) {
	var existing []models.QuizQuestion
	data, err := os.ReadFile(g.opts.QuizFile)
	if err == nil && json.Unmarshal(data, &existing) == nil && len(existing) > 0 {
		return existing, "existing"
	}
	return DefaultQuestions, "default"
}

// ErrMalformedResources is returned when the resources document exists but
// is not a JSON list. The file is left untouched.
var ErrMalformedResources = errors.New("resources document is not a list")

// existingResources holds the current catalog document. records are kept
// byte-for-byte so rewriting never drops or reshapes an old entry; entries
// are the ones that decode, used as quiz sources.
type existingResources struct {
	records []json.RawMessage
	entries []models.ResourceEntry
}

// readResources loads the current catalog document. A missing document is
// treated as empty.
func readResources(path string) (existingResources, error) {
	var out existingResources

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to read resources: %w", err)
	}

	if err := json.Unmarshal(data, &out.records); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrMalformedResources, path, err)
	}

	out.entries, err = catalog.DecodeEntries(datasource.Document{Data: data, Format: datasource.FormatJSON, Origin: path})
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrMalformedResources, path, err)
	}
	return out, nil
}

// writeJSON writes v indented, without HTML escaping, via a temp file
func writeJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
