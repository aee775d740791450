package imaging

import (
	"context"
	"sync"

	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Source fetches one patient's images. It is the narrow contract the batch
// fetcher needs; the Postgres repository and the upstream HTTP client both
// satisfy it.
type Source interface {
	FindByDocument(ctx context.Context, document types.Document) ([]DiagnosticImage, error)
}

// batchChunkSize bounds how many per-document fetches run at once. The
// upstream imaging endpoint only serves one document per call, so a roster
// page turns into a fan-out; ten keeps it below the endpoint's connection cap.
const batchChunkSize = 10

// BatchResult carries the summaries that could be fetched plus the failures
// per document. A failed document never fails the batch.
type BatchResult struct {
	Summaries map[types.Document]PatientImageSummary
	Failures  map[types.Document]error
}

// BatchFetcher aggregates image summaries for many patients at once
type BatchFetcher struct {
	source Source
}

// NewBatchFetcher creates a batch fetcher over an image source
func NewBatchFetcher(source Source) *BatchFetcher {
	return &BatchFetcher{source: source}
}

// FetchSummaries fetches and folds images for every document, chunked so at
// most batchChunkSize fetches are in flight. Duplicate documents are fetched
// once. Context cancellation stops remaining chunks; already collected
// results are still returned.
func (f *BatchFetcher) FetchSummaries(ctx context.Context, documents []types.Document) BatchResult {
	result := BatchResult{
		Summaries: make(map[types.Document]PatientImageSummary, len(documents)),
		Failures:  make(map[types.Document]error),
	}

	seen := make(map[types.Document]bool, len(documents))
	unique := make([]types.Document, 0, len(documents))
	for _, doc := range documents {
		if doc.IsZero() || seen[doc] {
			continue
		}
		seen[doc] = true
		unique = append(unique, doc)
	}

	var mu sync.Mutex

	for start := 0; start < len(unique); start += batchChunkSize {
		if ctx.Err() != nil {
			mu.Lock()
			for _, doc := range unique[start:] {
				result.Failures[doc] = errors.Unavailable("image fetch cancelled", ctx.Err())
			}
			mu.Unlock()
			break
		}

		end := start + batchChunkSize
		if end > len(unique) {
			end = len(unique)
		}

		var wg sync.WaitGroup
		for _, doc := range unique[start:end] {
			wg.Add(1)
			go func(doc types.Document) {
				defer wg.Done()
				images, err := f.source.FindByDocument(ctx, doc)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failures[doc] = err
					return
				}
				result.Summaries[doc] = Summarize(doc, images)
			}(doc)
		}
		wg.Wait()
	}

	return result
}
