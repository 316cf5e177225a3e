// Package datasource fetches the static JSON/YAML documents the site is
// built from, either over HTTP or from the local filesystem.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is the serialization of a fetched document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is a fetched, still-encoded document
type Document struct {
	Data   []byte
	Format Format
	Origin string
}

// Decode unmarshals the document into v according to its format
func (d Document) Decode(v interface{}) error {
	switch d.Format {
	case FormatYAML:
		if err := yaml.Unmarshal(d.Data, v); err != nil {
			return fmt.Errorf("failed to parse YAML from %s: %w", d.Origin, err)
		}
	default:
		if err := json.Unmarshal(d.Data, v); err != nil {
			return fmt.Errorf("failed to parse JSON from %s: %w", d.Origin, err)
		}
	}
	return nil
}

// Record is one element of a list document, decoded on its own so a bad
// element does not spoil the others
type Record struct {
	decode func(v interface{}) error
}

// Decode unmarshals the element into v
func (r Record) Decode(v interface{}) error {
	return r.decode(v)
}

// Records splits a list document into its elements. It fails only when
// the document as a whole is not a list.
func (d Document) Records() ([]Record, error) {
	var out []Record
	switch d.Format {
	case FormatYAML:
		var nodes []yaml.Node
		if err := yaml.Unmarshal(d.Data, &nodes); err != nil {
			return nil, fmt.Errorf("failed to parse YAML from %s: %w", d.Origin, err)
		}
		for i := range nodes {
			node := &nodes[i]
			out = append(out, Record{decode: node.Decode})
		}
	default:
		var raws []json.RawMessage
		if err := json.Unmarshal(d.Data, &raws); err != nil {
			return nil, fmt.Errorf("failed to parse JSON from %s: %w", d.Origin, err)
		}
		for _, raw := range raws {
			raw := raw
			out = append(out, Record{decode: func(v interface{}) error { return json.Unmarshal(raw, v) }})
		}
	}
	return out, nil
}

// DefaultMaxBytes caps a fetched document unless WithMaxBytes says otherwise
const DefaultMaxBytes int64 = 10 << 20

// ErrTooLarge is returned when a document exceeds the size cap
var ErrTooLarge = errors.New("document too large")

// Option configures a source built by New
type Option func(*options)

type options struct {
	maxBytes int64
}

// WithMaxBytes caps the document size; n <= 0 keeps the default
func WithMaxBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

// readLimited reads at most max bytes from r, failing if there is more
func readLimited(r io.Reader, max int64, origin string) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, origin, max)
	}
	return data, nil
}

// Source yields one document per Fetch call
type Source interface {
	Fetch(ctx context.Context) (Document, error)
}

// New picks an HTTP source for http(s) URLs and a file source otherwise
func New(location string, client *http.Client, opts ...Option) Source {
	o := options{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return &HTTPSource{URL: location, Client: client, CacheBust: true, MaxBytes: o.maxBytes}
	}
	return &FileSource{Path: location, MaxBytes: o.maxBytes}
}

// formatFor guesses the format from a path or URL path extension
func formatFor(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// FileSource reads a document from disk on every Fetch
type FileSource struct {
	Path     string
	MaxBytes int64
}

func (s *FileSource) Fetch(ctx context.Context) (Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, s.MaxBytes, s.Path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Document{Data: data, Format: formatFor(s.Path), Origin: s.Path}, nil
}

// HTTPSource GETs a document. With CacheBust set, a t=<unix-nanos> query
// parameter is added so intermediaries never serve a stale copy.
type HTTPSource struct {
	URL       string
	Client    *http.Client
	CacheBust bool
	MaxBytes  int64
	now       func() time.Time
}

func (s *HTTPSource) Fetch(ctx context.Context) (Document, error) {
	target, err := url.Parse(s.URL)
	if err != nil {
		return Document{}, fmt.Errorf("invalid source url: %w", err)
	}

	if s.CacheBust {
		now := time.Now
		if s.now != nil {
			now = s.now
		}
		q := target.Query()
		q.Set("t", strconv.FormatInt(now().UnixNano(), 10))
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Document{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.URL)
	}

	data, err := readLimited(resp.Body, s.MaxBytes, s.URL)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read body: %w", err)
	}

	format := formatFor(target.Path)
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = FormatYAML
	}

	return Document{Data: data, Format: format, Origin: s.URL}, nil
}
