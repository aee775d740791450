package imaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teleatencion/platform/internal/shared/types"
)

// SummaryCache keeps per-patient image summaries in Redis so a roster page
// does not re-trigger the upstream fan-out on every refresh. Entries are
// short-lived and invalidated on any evaluate, reject or resubmit.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache creates a summary cache with the given TTL
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(document types.Document) string {
	return "imaging:summary:" + document.String()
}

// Get returns the cached summary for a patient, or nil on a miss. Cache
// errors are reported as misses; the caller falls through to the source.
func (c *SummaryCache) Get(ctx context.Context, document types.Document) *PatientImageSummary {
	data, err := c.client.Get(ctx, summaryKey(document)).Bytes()
	if err != nil {
		return nil
	}

	var summary PatientImageSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil
	}
	return &summary
}

// Set stores a summary for a patient
func (c *SummaryCache) Set(ctx context.Context, summary PatientImageSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.client.Set(ctx, summaryKey(summary.PatientDocument), data, c.ttl)
}

// Invalidate drops the cached summary for a patient
func (c *SummaryCache) Invalidate(ctx context.Context, document types.Document) {
	c.client.Del(ctx, summaryKey(document))
}
