package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/northbuild/north-be/types"
)

// VaultSource indexes a local markdown vault. The filesystem has no change
// feed, so the cursor is a snapshot of the last scan: a timestamp plus the
// set of paths seen. Files modified after the timestamp become upserts and
// paths missing from the current walk become deletions.
type VaultSource struct {
	root   string
	ignore []string
}

type vaultCursor struct {
	ScannedAt int64    `json:"scanned_at"`
	Paths     []string `json:"paths"`
}

var defaultVaultIgnore = []string{
	".obsidian/**",
	".trash/**",
	".git/**",
}

func NewVaultSource(root string, ignore []string) *VaultSource {
	if len(ignore) == 0 {
		ignore = defaultVaultIgnore
	}
	return &VaultSource{
		root:   filepath.Clean(root),
		ignore: ignore,
	}
}

func (v *VaultSource) Name() string {
	return types.SourceNotes
}

func (v *VaultSource) Changes(ctx context.Context, cursor string) (*types.ChangePage, error) {
	prev := vaultCursor{}
	if cursor != "" {
		if err := json.Unmarshal([]byte(cursor), &prev); err != nil {
			return nil, fmt.Errorf("vault cursor decode: %w", types.ErrCursorReset)
		}
	}
	since := time.Unix(0, prev.ScannedAt)
	seen := make(map[string]bool, len(prev.Paths))
	for _, p := range prev.Paths {
		seen[p] = true
	}

	scannedAt := time.Now()
	page := &types.ChangePage{}
	current := make([]string, 0, len(prev.Paths))
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(v.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if v.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !shouldIndex(path) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		current = append(current, rel)
		if !seen[rel] || info.ModTime().After(since) {
			page.Changes = append(page.Changes, types.Change{
				SourceID:   rel,
				Path:       rel,
				Name:       d.Name(),
				ModifiedAt: info.ModTime().Unix(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault walk: %w", err)
	}

	currentSet := make(map[string]bool, len(current))
	for _, p := range current {
		currentSet[p] = true
	}
	for _, p := range prev.Paths {
		if !currentSet[p] {
			page.Changes = append(page.Changes, types.Change{
				SourceID: p,
				Path:     p,
				Name:     filepath.Base(p),
				Deleted:  true,
			})
		}
	}

	sort.Strings(current)
	next, err := json.Marshal(vaultCursor{
		ScannedAt: scannedAt.UnixNano(),
		Paths:     current,
	})
	if err != nil {
		return nil, fmt.Errorf("vault cursor encode: %w", err)
	}
	page.Cursor = string(next)
	return page, nil
}

func (v *VaultSource) Fetch(ctx context.Context, change types.Change) (string, types.Metadata, error) {
	data, err := os.ReadFile(filepath.Join(v.root, filepath.FromSlash(change.SourceID)))
	if err != nil {
		return "", types.Metadata{}, fmt.Errorf("vault read %s: %w", change.Path, err)
	}
	content := string(data)
	meta := v.metadataFor(change, content)
	return content, meta, nil
}

func (v *VaultSource) ignored(rel string) bool {
	for _, pattern := range v.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// Also match the directory itself so WalkDir can skip it.
		if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
			return true
		}
	}
	return false
}

// metadataFor maps the vault layout onto search metadata. Notes under
// Companies/ describe a contractor, notes under Projects/ or WorkLogs/
// belong to a project, and frontmatter tags carry through as-is.
func (v *VaultSource) metadataFor(change types.Change, content string) types.Metadata {
	meta := types.Metadata{
		Title:      titleFromName(change.Name),
		Path:       change.Path,
		ModifiedAt: change.ModifiedAt,
		Tags:       frontmatterTags(content),
	}
	meta.DocumentType = inferDocumentType(change.Name)

	segments := strings.Split(change.SourceID, "/")
	switch {
	case len(segments) >= 2 && strings.EqualFold(segments[0], "Companies"):
		meta.Contractor = titleFromName(segments[len(segments)-1])
	case len(segments) >= 2 && (strings.EqualFold(segments[0], "Projects") || strings.EqualFold(segments[0], "WorkLogs")):
		if len(segments) > 2 {
			meta.Project = segments[1]
		} else {
			meta.Project = titleFromName(segments[len(segments)-1])
		}
	}
	return meta
}

// frontmatterTags pulls tags out of a YAML frontmatter block. Only the
// inline list form `tags: [a, b]` and the value form `tags: a` are
// recognized; anything fancier is ignored.
func frontmatterTags(content string) []string {
	if !strings.HasPrefix(content, "---") {
		return nil
	}
	end := strings.Index(content[3:], "---")
	if end < 0 {
		return nil
	}
	block := content[3 : 3+end]
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "tags:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "tags:"))
		value = strings.Trim(value, "[]")
		if value == "" {
			return nil
		}
		parts := strings.Split(value, ",")
		tags := make([]string, 0, len(parts))
		for _, p := range parts {
			if tag := strings.Trim(strings.TrimSpace(p), `"'`); tag != "" {
				tags = append(tags, tag)
			}
		}
		return tags
	}
	return nil
}
