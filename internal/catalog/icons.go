package catalog

import (
	"path"
	"strings"

	"github.com/terra-clan/studyhub/internal/models"
)

// Category groups file extensions that share an icon
type Category string

const (
	CategoryImage    Category = "image"
	CategoryPDF      Category = "pdf"
	CategoryData     Category = "data"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryFile     Category = "file"
)

var categoryByExt = map[string]Category{
	".png":  CategoryImage,
	".jpg":  CategoryImage,
	".jpeg": CategoryImage,
	".gif":  CategoryImage,
	".svg":  CategoryImage,
	".pdf":  CategoryPDF,
	".csv":  CategoryData,
	".xlsx": CategoryData,
	".mp4":  CategoryVideo,
	".webm": CategoryVideo,
	".doc":  CategoryDocument,
	".docx": CategoryDocument,
}

var glyphs = map[Category]string{
	CategoryImage:    "🖼️",
	CategoryPDF:      "📄",
	CategoryData:     "📊",
	CategoryVideo:    "🎥",
	CategoryDocument: "📝",
	CategoryFile:     "📁",
}

// normalizeExt lowercases ext and makes sure it starts with a dot
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// CategoryFor classifies an extension; unknown extensions are CategoryFile
func CategoryFor(ext string) Category {
	if c, ok := categoryByExt[normalizeExt(ext)]; ok {
		return c
	}
	return CategoryFile
}

// IconFor returns the glyph shown for a file extension
func IconFor(ext string) string {
	return glyphs[CategoryFor(ext)]
}

// Classify decides how a resource path can be previewed inline
func Classify(p string) models.Preview {
	kind := models.PreviewUnsupported
	switch CategoryFor(path.Ext(p)) {
	case CategoryImage:
		kind = models.PreviewImage
	case CategoryPDF:
		kind = models.PreviewPDF
	}
	return models.Preview{Kind: kind, Path: p}
}
