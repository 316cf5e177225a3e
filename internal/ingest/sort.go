package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Bucket is the subdirectory an upload is moved into
type Bucket struct {
	Dir      string
	Fallback string // description used when no text can be extracted
}

var (
	bucketPDF    = Bucket{Dir: "pdfs", Fallback: noSummaryText}
	bucketImage  = Bucket{Dir: "images", Fallback: "Image resource"}
	bucketDoc    = Bucket{Dir: "docs", Fallback: noSummaryText}
	bucketSlides = Bucket{Dir: "pptx", Fallback: noSummaryText}
	bucketSheet  = Bucket{Dir: "sheets", Fallback: noSummaryText}
	bucketMisc   = Bucket{Dir: "misc", Fallback: "Misc resource"}

	buckets = []Bucket{bucketPDF, bucketImage, bucketDoc, bucketSlides, bucketSheet, bucketMisc}
)

// BucketFor picks the subdirectory for a file extension
func BucketFor(ext string) Bucket {
	switch strings.ToLower(ext) {
	case ".pdf":
		return bucketPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".svg":
		return bucketImage
	case ".doc", ".docx", ".html", ".htm", ".txt", ".md":
		return bucketDoc
	case ".pptx":
		return bucketSlides
	case ".xlsx", ".csv":
		return bucketSheet
	default:
		return bucketMisc
	}
}

// isImage reports whether b holds files that are their own thumbnail
func (b Bucket) isImage() bool {
	return b.Dir == bucketImage.Dir
}

func ensureDirs(root string) error {
	for _, b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, b.Dir), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", b.Dir, err)
		}
	}
	return nil
}

// pendingUploads lists the regular, non-hidden files directly in root
func pendingUploads(root string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploads: %w", err)
	}
	var files []os.DirEntry
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		files = append(files, e)
	}
	return files, nil
}

// titleFromStem turns "intro_to_stats" into "Intro To Stats"
func titleFromStem(stem string) string {
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
