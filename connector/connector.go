package connector

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/northbuild/north-be/types"
)

// Source is one upstream knowledge source. Implementations report changes
// incrementally through an opaque cursor and fetch content on demand; the
// sync manager owns everything downstream of this boundary.
type Source interface {
	Name() string
	// Changes lists the next page of the source's change stream. An
	// empty cursor starts a full listing. The returned cursor is only
	// safe to persist after every change in the page has been applied.
	Changes(ctx context.Context, cursor string) (*types.ChangePage, error)
	// Fetch retrieves the current content and metadata of a changed item.
	Fetch(ctx context.Context, change types.Change) (string, types.Metadata, error)
}

// Extensions indexed as plain text. Binary formats (PDF, DOCX,
// spreadsheets) go through the external extraction service before they
// reach a source folder, so they never show up here.
var indexedExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".csv":  true,
	".json": true,
}

func shouldIndex(path string) bool {
	return indexedExtensions[strings.ToLower(filepath.Ext(path))]
}

var documentTypeHints = []string{
	"invoice",
	"contract",
	"agreement",
	"proposal",
	"insurance",
	"w9",
	"receipt",
	"change order",
	"worklog",
}

// inferDocumentType guesses a document type from the file name. Purely a
// search hint; absent types just mean no document_type filter will match.
func inferDocumentType(name string) string {
	lower := strings.ToLower(name)
	for _, hint := range documentTypeHints {
		if strings.Contains(lower, hint) {
			return hint
		}
	}
	return ""
}

func titleFromName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
