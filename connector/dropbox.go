package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/northbuild/north-be/types"
)

// DropboxSource indexes a Dropbox folder tree through the list_folder
// cursor protocol. The cursor returned by Changes is the raw Dropbox
// cursor, so incremental runs only see what moved since the last one.
type DropboxSource struct {
	client files.Client
	root   string
}

func NewDropboxSource(token, root string) *DropboxSource {
	cfg := dropbox.Config{
		Token: token,
	}
	return &DropboxSource{
		client: files.New(cfg),
		root:   root,
	}
}

func (d *DropboxSource) Name() string {
	return types.SourceDropbox
}

func (d *DropboxSource) Changes(ctx context.Context, cursor string) (*types.ChangePage, error) {
	var res *files.ListFolderResult
	var err error
	if cursor == "" {
		arg := files.NewListFolderArg(d.root)
		arg.Recursive = true
		arg.IncludeDeleted = true
		res, err = d.client.ListFolder(arg)
	} else {
		res, err = d.client.ListFolderContinue(files.NewListFolderContinueArg(cursor))
		if err != nil && isCursorReset(err) {
			return nil, fmt.Errorf("dropbox cursor expired: %w", types.ErrCursorReset)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dropbox list folder: %w", err)
	}

	page := &types.ChangePage{
		Cursor:  res.Cursor,
		HasMore: res.HasMore,
	}
	for _, entry := range res.Entries {
		switch md := entry.(type) {
		case *files.FileMetadata:
			if !shouldIndex(md.PathLower) {
				continue
			}
			page.Changes = append(page.Changes, types.Change{
				SourceID:   md.PathLower,
				Path:       md.PathDisplay,
				Name:       md.Name,
				ModifiedAt: md.ServerModified.Unix(),
			})
		case *files.DeletedMetadata:
			// Deleted entries carry no id, only the path, so the
			// path doubles as the stable identifier for Dropbox.
			page.Changes = append(page.Changes, types.Change{
				SourceID: md.PathLower,
				Path:     md.PathDisplay,
				Name:     md.Name,
				Deleted:  true,
			})
		}
	}
	return page, nil
}

func (d *DropboxSource) Fetch(ctx context.Context, change types.Change) (string, types.Metadata, error) {
	md, content, err := d.client.Download(files.NewDownloadArg(change.SourceID))
	if err != nil {
		return "", types.Metadata{}, fmt.Errorf("dropbox download %s: %w", change.Path, err)
	}
	defer content.Close()
	data, err := io.ReadAll(content)
	if err != nil {
		return "", types.Metadata{}, fmt.Errorf("dropbox read %s: %w", change.Path, err)
	}

	meta := d.metadataFor(change)
	if meta.ModifiedAt == 0 {
		meta.ModifiedAt = md.ServerModified.Unix()
	}
	return string(data), meta, nil
}

// metadataFor derives search metadata from the folder layout. The tree is
// organized as <root>/<project>/<contractor>/<file>, so path segments map
// directly onto the filterable fields.
func (d *DropboxSource) metadataFor(change types.Change) types.Metadata {
	meta := types.Metadata{
		Title:      titleFromName(change.Name),
		Path:       change.Path,
		ModifiedAt: change.ModifiedAt,
	}
	meta.DocumentType = inferDocumentType(change.Name)

	rel := strings.TrimPrefix(strings.ToLower(change.Path), strings.ToLower(d.root))
	rel = strings.Trim(rel, "/")
	segments := strings.Split(path.Dir(rel), "/")
	if len(segments) > 0 && segments[0] != "." && segments[0] != "" {
		meta.Project = segments[0]
	}
	if len(segments) > 1 {
		meta.Contractor = segments[1]
	}
	return meta
}

func isCursorReset(err error) bool {
	var apiErr files.ListFolderContinueAPIError
	if errors.As(err, &apiErr) {
		return apiErr.EndpointError != nil && apiErr.EndpointError.Tag == "reset"
	}
	return false
}
