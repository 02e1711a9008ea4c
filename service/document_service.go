package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/northbuild/north-be/types"
)

// DocumentService turns fetched source content into index-ready chunks.
type DocumentService struct {
	maxChunkSize int
	overlapSize  int
}

var DefaultDocumentServiceConfig = types.DocumentServiceConfig{
	MaxChunkSize: 1024,
	OverlapSize:  100,
}

func NewDocumentService(config types.DocumentServiceConfig) *DocumentService {
	if config.MaxChunkSize <= 0 {
		config = DefaultDocumentServiceConfig
	}
	return &DocumentService{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
	}
}

// Chunk splits one source item into Documents. Every chunk shares the
// parent's metadata and fingerprint; the fingerprint is of the whole
// item, so redelivery detection works without reassembling chunks.
func (s *DocumentService) Chunk(source string, change types.Change, content string, meta types.Metadata, fingerprint string) []types.Document {
	pieces := s.splitText(content)
	parentID := fmt.Sprintf("%s:%s", source, change.SourceID)
	now := time.Now().Unix()

	docs := make([]types.Document, 0, len(pieces))
	for i, piece := range pieces {
		docs = append(docs, types.Document{
			ID:          uuid.NewString(),
			SourceID:    change.SourceID,
			Source:      source,
			ParentID:    parentID,
			ChunkIndex:  i,
			TotalChunks: len(pieces),
			Content:     piece,
			Fingerprint: fingerprint,
			Metadata:    meta,
			CreatedAt:   now,
		})
	}
	return docs
}

// splitText cuts text into overlapping chunks, preferring sentence ends
// and falling back to word boundaries.
func (s *DocumentService) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.maxChunkSize {
		return []string{text}
	}

	var chunks []string
	currentPos := 0
	for currentPos < len(text) {
		chunkEnd := currentPos + s.maxChunkSize
		if chunkEnd >= len(text) {
			if chunk := strings.TrimSpace(text[currentPos:]); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Find nearest sentence end
		sentenceEnd := chunkEnd
		for i := chunkEnd; i > currentPos; i-- {
			if text[i] == '.' || text[i] == '?' || text[i] == '!' || text[i] == '\n' {
				sentenceEnd = i + 1
				break
			}
		}
		// If no sentence end found, use word boundary
		if sentenceEnd == chunkEnd {
			for i := chunkEnd; i > currentPos; i-- {
				if text[i] == ' ' {
					sentenceEnd = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(text[currentPos:sentenceEnd]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := sentenceEnd - s.overlapSize
		if next <= currentPos {
			next = sentenceEnd
		}
		currentPos = next
	}
	return chunks
}
