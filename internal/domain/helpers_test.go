package domain_test

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/stacktrail/stacktrail/internal/domain"
)

// baseTime anchors all test timestamps. Chosen mid-day so day-boundary
// arithmetic in aggregation tests is unambiguous.
var baseTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// rec builds a minimal valid record. The hash encodes type, ID, and
// sequence so records compare distinct without extra bookkeeping.
func rec(resourceType, resourceID string, seq int64, recordedAt time.Time) domain.ChangeRecord {
	return domain.ChangeRecord{
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		ChangeHash:     fmt.Sprintf("%s/%s#%d", resourceType, resourceID, seq),
		ChangeSequence: seq,
		RecordedAt:     recordedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// shuffled returns a deterministically shuffled copy of records.
func shuffled(records []domain.ChangeRecord, seed int64) []domain.ChangeRecord {
	out := make([]domain.ChangeRecord, len(records))
	copy(out, records)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// hashes projects records onto their change hashes, which the helpers use
// as record identity.
func hashes(records []domain.ChangeRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ChangeHash
	}
	return out
}

// isSubsequence reports whether sub appears within full preserving order.
func isSubsequence(sub, full []string) bool {
	i := 0
	for _, v := range full {
		if i < len(sub) && sub[i] == v {
			i++
		}
	}
	return i == len(sub)
}
