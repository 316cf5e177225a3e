package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

const (
	summaryLines  = 3
	maxSheetRows  = 20
	noSummaryText = "Auto summary not available."
)

// ExtractText pulls readable text out of the formats we can parse in
// process. Unsupported formats return an empty string and no error.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return extractHTML(path)
	case ".xlsx":
		return extractXLSX(path)
	case ".txt", ".md", ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	default:
		return "", nil
	}
}

func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, nav, footer").Remove()

	var lines []string
	doc.Find("title, h1, h2, h3, h4, p, li, td, th").Each(func(_ int, s *goquery.Selection) {
		if text := condense(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n"), nil
}

func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	var lines []string
	for i, row := range rows {
		if i >= maxSheetRows {
			break
		}
		if line := condense(strings.Join(row, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// condense collapses runs of whitespace into single spaces
func condense(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Summarize joins the first three non-empty lines of text
func Summarize(text string) string {
	var parts []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
			if len(parts) == summaryLines {
				break
			}
		}
	}
	return strings.Join(parts, " ")
}
