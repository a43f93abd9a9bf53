package storage

import (
	"path/filepath"
	"strings"

	"github.com/fieldtrace/signalstudio/internal/models"
)

// categoryRule captures the extension allow-list and per-file size cap for
// one category: the category determines allowed extensions and the
// per-file max size.
type categoryRule struct {
	extensions []string
	maxBytes   int64
}

var categoryRules = map[models.Category]categoryRule{
	models.CategoryMF4:      {extensions: []string{".mf4", ".mdf", ".mf3"}, maxBytes: 5 * 1024 * 1024 * 1024},
	models.CategoryDBC:      {extensions: []string{".dbc"}, maxBytes: 10 * 1024 * 1024},
	models.CategoryLayouts:  {extensions: []string{".json"}, maxBytes: 1024 * 1024},
	models.CategoryMappings: {extensions: []string{".json"}, maxBytes: 10 * 1024 * 1024},
	models.CategoryAnalyses: {extensions: []string{".json"}, maxBytes: 5 * 1024 * 1024},
}

func validCategory(category models.Category) bool {
	_, ok := categoryRules[category]
	return ok
}

// validExtension reports whether a filename's extension is allowed for a
// category, case-insensitively.
func validExtension(category models.Category, filename string) bool {
	rule, ok := categoryRules[category]
	if !ok {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range rule.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func maxBytesFor(category models.Category) int64 {
	return categoryRules[category].maxBytes
}

func primaryExtension(category models.Category) string {
	rule := categoryRules[category]
	if len(rule.extensions) == 0 {
		return ""
	}
	return rule.extensions[0]
}
