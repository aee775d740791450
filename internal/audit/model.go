// Package audit keeps an append-only trail of clinical activity. Entries are
// hash-chained so tampering with a stored row breaks verification of every
// entry after it.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/teleatencion/platform/internal/shared/types"
)

// ActivityEntry is one immutable row of the clinical activity trail
type ActivityEntry struct {
	ID        types.ID  `json:"id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash,omitempty"`

	ActorID   types.ID `json:"actor_id"`
	ActorName string   `json:"actor_name,omitempty"`
	Facility  string   `json:"facility,omitempty"`

	Action       string   `json:"action"`
	ResourceType string   `json:"resource_type"`
	ResourceID   types.ID `json:"resource_id,omitempty"`

	Detail map[string]any `json:"detail,omitempty"`
}

// Clinical activity actions
const (
	ActionAttentionRecorded = "roster.outcome_recorded"
	ActionConditionChanged  = "roster.condition_changed"
	ActionFieldPatched      = "roster.field_patched"
	ActionAssignmentCreated = "roster.allocated"
	ActionImageUploaded     = "image.uploaded"
	ActionImageEvaluated    = "image.evaluated"
	ActionImageAmended      = "image.evaluation_amended"
	ActionImageRejected     = "image.rejected"
	ActionImageResubmitted  = "image.resubmitted"
)

// NewActivityEntry creates an entry chained to the previous one. The caller
// supplies the hash of the latest stored entry, or "" for the first entry.
func NewActivityEntry(actorID types.ID, actorName, facility, action, resourceType string, resourceID types.ID, detail map[string]any, prevHash string) *ActivityEntry {
	entry := &ActivityEntry{
		ID: types.NewID(),
		// Truncated to microseconds so the hash survives a PostgreSQL round trip
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		PrevHash:     prevHash,
		ActorID:      actorID,
		ActorName:    actorName,
		Facility:     facility,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       normalizeDetail(detail),
	}
	entry.Hash = entry.computeHash()
	return entry
}

// normalizeDetail round-trips the detail through JSON so the in-memory value
// hashes identically to what comes back out of a JSONB column. Without this,
// struct field order and integer types would change the hash on reload.
func normalizeDetail(detail map[string]any) map[string]any {
	if len(detail) == 0 {
		return nil
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return detail
	}
	var normalized map[string]any
	if err := json.Unmarshal(payload, &normalized); err != nil {
		return detail
	}
	return normalized
}

// computeHash hashes the entry fields. encoding/json sorts map keys, so the
// serialization is deterministic without a canonical encoder.
func (e *ActivityEntry) computeHash() string {
	data := map[string]any{
		"id":            e.ID,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"prev_hash":     e.PrevHash,
		"actor_id":      e.ActorID,
		"action":        e.Action,
		"resource_type": e.ResourceType,
		"resource_id":   e.ResourceID,
	}
	if len(e.Detail) > 0 {
		data["detail"] = e.Detail
	}

	payload, _ := json.Marshal(data)
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}

// VerifyHash reports whether the stored hash matches the entry's content
func (e *ActivityEntry) VerifyHash() bool {
	return e.Hash == e.computeHash()
}

// VerifyChain checks hash integrity and linkage of entries ordered by
// sequence. It returns the sequence of the first broken entry, or 0.
func VerifyChain(entries []ActivityEntry) (int64, bool) {
	prevHash := ""
	for i := range entries {
		e := &entries[i]
		if !e.VerifyHash() || e.PrevHash != prevHash {
			return e.Sequence, false
		}
		prevHash = e.Hash
	}
	return 0, true
}

// ListFilter narrows a trail listing
type ListFilter struct {
	ActorID      types.ID   `json:"actor_id,omitempty"`
	Action       string     `json:"action,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   types.ID   `json:"resource_id,omitempty"`
	From         *time.Time `json:"from,omitempty"`
	To           *time.Time `json:"to,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}
