package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/northbuild/north-be/config"
	"github.com/northbuild/north-be/connector"
	"github.com/northbuild/north-be/repository"
	"github.com/northbuild/north-be/types"
	"github.com/northbuild/north-be/utils"
)

// DocumentStore is the slice of the vector store the sync service needs.
type DocumentStore interface {
	UpsertChunks(ctx context.Context, docs []types.Document, embeddings [][]float32) error
	DeleteBySourceID(ctx context.Context, source, sourceID string) error
	PurgeSource(ctx context.Context, source string) error
	GetFingerprint(ctx context.Context, source, sourceID string) (string, bool, error)
}

type sourceState struct {
	mu        sync.Mutex
	running   bool
	processed int
	lastError string
}

// SyncService drives incremental synchronization from the sources into
// the index. Cursors advance page by page and only after the whole page
// applied, so a crash or partial failure replays the unapplied remainder
// and nothing before it. Fingerprints make that replay idempotent.
type SyncService struct {
	sources   map[string]connector.Source
	store     DocumentStore
	cursors   repository.CursorRepo
	documents *DocumentService
	embedder  AIService
	cfg       config.SyncConfig

	stateMu sync.Mutex
	state   map[string]*sourceState
}

func NewSyncService(sources []connector.Source, store DocumentStore, cursors repository.CursorRepo, documents *DocumentService, embedder AIService, cfg config.SyncConfig) *SyncService {
	byName := make(map[string]connector.Source, len(sources))
	state := make(map[string]*sourceState, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
		state[src.Name()] = &sourceState{}
	}
	return &SyncService{
		sources:   byName,
		store:     store,
		cursors:   cursors,
		documents: documents,
		embedder:  embedder,
		cfg:       cfg,
		state:     state,
	}
}

// Sync runs one incremental pass for a source. Concurrent syncs of the
// same source are rejected; different sources run independently.
func (s *SyncService) Sync(ctx context.Context, sourceName string) (*types.SyncResult, error) {
	source, ok := s.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceName)
	}
	st := s.state[sourceName]
	if !st.mu.TryLock() {
		return nil, fmt.Errorf("sync of %s already running", sourceName)
	}
	defer st.mu.Unlock()
	s.setRunning(st, true)
	defer s.setRunning(st, false)

	started := time.Now()
	cursor, err := s.cursors.Get(ctx, sourceName)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	result := &types.SyncResult{Source: sourceName, Cursor: cursor}
	for {
		page, err := source.Changes(ctx, cursor)
		if err != nil {
			s.recordError(st, err)
			if errors.Is(err, types.ErrCursorReset) {
				return result, fmt.Errorf("source %s: %w (run a reindex to recover)", sourceName, err)
			}
			return result, err
		}

		for i, change := range page.Changes {
			outcome, err := s.applyChange(ctx, source, change)
			if err != nil {
				unapplied := make([]string, 0, len(page.Changes)-i)
				for _, rest := range page.Changes[i:] {
					unapplied = append(unapplied, rest.Path)
				}
				partial := &types.SyncPartialError{
					Source:    sourceName,
					Cursor:    cursor,
					Applied:   result.Upserted + result.Skipped + result.Deleted,
					Unapplied: unapplied,
					Err:       err,
				}
				s.recordError(st, partial)
				return result, partial
			}
			switch outcome {
			case applyDeleted:
				result.Deleted++
			case applySkipped:
				result.Skipped++
			default:
				result.Upserted++
			}
			s.bumpProcessed(st)
		}

		if err := s.cursors.Save(ctx, sourceName, page.Cursor); err != nil {
			s.recordError(st, err)
			return result, fmt.Errorf("save cursor: %w", err)
		}
		cursor = page.Cursor
		result.Cursor = cursor
		if !page.HasMore {
			break
		}
	}

	result.DurationMs = time.Since(started).Milliseconds()
	s.clearError(st)
	log.Printf("sync %s done: %d upserted, %d skipped, %d deleted in %dms",
		sourceName, result.Upserted, result.Skipped, result.Deleted, result.DurationMs)
	return result, nil
}

// SyncAll runs every registered source. One failing source does not stop
// the others; the joined error reports all failures.
func (s *SyncService) SyncAll(ctx context.Context) ([]*types.SyncResult, error) {
	var results []*types.SyncResult
	var errs []error
	for name := range s.sources {
		result, err := s.Sync(ctx, name)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Rebuild drops everything indexed for a source along with its cursor
// and resyncs from scratch. This is the recovery path for cursor resets
// and index corruption.
func (s *SyncService) Rebuild(ctx context.Context, sourceName string) (*types.SyncResult, error) {
	if _, ok := s.sources[sourceName]; !ok {
		return nil, fmt.Errorf("unknown source %q", sourceName)
	}
	if err := s.store.PurgeSource(ctx, sourceName); err != nil {
		return nil, fmt.Errorf("purge %s: %w", sourceName, err)
	}
	if err := s.cursors.Clear(ctx, sourceName); err != nil {
		return nil, fmt.Errorf("clear cursor: %w", err)
	}
	return s.Sync(ctx, sourceName)
}

// Status reports the current state of every source.
func (s *SyncService) Status() []types.SyncStatus {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	statuses := make([]types.SyncStatus, 0, len(s.state))
	for name, st := range s.state {
		statuses = append(statuses, types.SyncStatus{
			Source:    name,
			Running:   st.running,
			Processed: st.processed,
			LastError: st.lastError,
		})
	}
	return statuses
}

// Watch resyncs the vault whenever its files change, debounced so a
// burst of edits becomes one sync. Blocks until ctx is done.
func (s *SyncService) Watch(ctx context.Context) error {
	if _, ok := s.sources[types.SourceNotes]; !ok || s.cfg.VaultPath == "" {
		return errors.New("no vault source to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, s.cfg.VaultPath); err != nil {
		return err
	}

	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories need their own watch.
				_ = addWatchDirs(watcher, event.Name)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(2*time.Second, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Println("vault watcher error:", err)
		case <-trigger:
			if _, err := s.Sync(ctx, types.SourceNotes); err != nil {
				log.Println("vault resync failed:", err)
			}
		}
	}
}

type applyOutcome int

const (
	applyUpserted applyOutcome = iota
	applySkipped
	applyDeleted
)

// applyChange applies one change with retries. Transient store and
// provider errors get a few attempts before the page is declared
// partially failed.
func (s *SyncService) applyChange(ctx context.Context, source connector.Source, change types.Change) (applyOutcome, error) {
	attempts := s.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := time.Duration(s.cfg.RetryBaseMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	if change.Deleted {
		return applyDeleted, utils.Retry(ctx, attempts, baseDelay, func() error {
			return s.store.DeleteBySourceID(ctx, source.Name(), change.SourceID)
		})
	}

	content, meta, err := source.Fetch(ctx, change)
	if err != nil {
		return applyUpserted, err
	}
	fingerprint := utils.Fingerprint(content)
	existing, found, err := s.store.GetFingerprint(ctx, source.Name(), change.SourceID)
	if err != nil {
		return applyUpserted, err
	}
	// Same fingerprint means a redelivery or a touch without content
	// change, either way there is nothing to reindex.
	if found && existing == fingerprint {
		return applySkipped, nil
	}

	docs := s.documents.Chunk(source.Name(), change, content, meta, fingerprint)
	if len(docs) == 0 {
		return applySkipped, nil
	}
	var embeddings [][]float32
	if s.embedder != nil {
		texts := make([]string, len(docs))
		for i, doc := range docs {
			texts[i] = doc.Content
		}
		embeddings, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return applyUpserted, fmt.Errorf("embed %s: %w", change.Path, err)
		}
	}
	return applyUpserted, utils.Retry(ctx, attempts, baseDelay, func() error {
		return s.store.UpsertChunks(ctx, docs, embeddings)
	})
}

func (s *SyncService) setRunning(st *sourceState, running bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st.running = running
	if running {
		st.processed = 0
	}
}

func (s *SyncService) bumpProcessed(st *sourceState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st.processed++
}

func (s *SyncService) recordError(st *sourceState, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st.lastError = err.Error()
}

func (s *SyncService) clearError(st *sourceState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st.lastError = ""
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return watcher.Add(path)
	})
}
