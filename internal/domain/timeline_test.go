package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacktrail/stacktrail/internal/domain"
)

// chainRecord builds one link of a hash chain.
func chainRecord(seq int64, hash, prev string) domain.ChangeRecord {
	return domain.ChangeRecord{
		ResourceType:   "volume",
		ResourceID:     "vol-1",
		ChangeHash:     hash,
		PreviousHash:   prev,
		ChangeSequence: seq,
		RecordedAt:     baseTime.Add(time.Duration(seq) * time.Minute),
	}
}

// ---------------------------------------------------------------------------
// 1. Intact chains.
// ---------------------------------------------------------------------------

func TestBuildTimeline_IntactChain(t *testing.T) {
	t.Parallel()

	records := []domain.ChangeRecord{
		chainRecord(1, "aaa", ""),
		chainRecord(2, "bbb", "aaa"),
		chainRecord(3, "ccc", "bbb"),
	}

	tl := domain.BuildTimeline("volume", "vol-1", records)

	assert.Equal(t, "volume", tl.ResourceType)
	assert.Equal(t, "vol-1", tl.ResourceID)
	assert.Len(t, tl.Records, 3)
	assert.Empty(t, tl.Anomalies)
	assert.True(t, tl.Verified())
}

func TestBuildTimeline_EmptyAndSingle(t *testing.T) {
	t.Parallel()

	t.Run("empty history verifies", func(t *testing.T) {
		t.Parallel()

		tl := domain.BuildTimeline("server", "srv-1", nil)
		assert.Empty(t, tl.Records)
		assert.NotNil(t, tl.Anomalies, "anomalies must serialize as [] not null")
		assert.True(t, tl.Verified())
	})

	t.Run("single record verifies regardless of previousHash", func(t *testing.T) {
		t.Parallel()

		// The first record has no predecessor, so even a dangling
		// previousHash is not an anomaly.
		tl := domain.BuildTimeline("server", "srv-1", []domain.ChangeRecord{
			chainRecord(1, "aaa", "dangling"),
		})
		assert.Len(t, tl.Records, 1)
		assert.Empty(t, tl.Anomalies)
		assert.True(t, tl.Verified())
	})
}

// ---------------------------------------------------------------------------
// 2. Broken chains.
// ---------------------------------------------------------------------------

// TestBuildTimeline_SingleBreak walks a three-record timeline whose third
// record does not link back to the second: only index 2 is anomalous.
func TestBuildTimeline_SingleBreak(t *testing.T) {
	t.Parallel()

	records := []domain.ChangeRecord{
		chainRecord(1, "aaa", ""),
		chainRecord(2, "bbb", "aaa"),
		chainRecord(3, "ccc", "tampered"),
	}

	tl := domain.BuildTimeline("volume", "vol-1", records)

	assert.Equal(t, []int{2}, tl.Anomalies)
	assert.False(t, tl.Verified())
	assert.Len(t, tl.Records, 3, "a broken link must not drop records")
}

func TestBuildTimeline_MultipleBreaks(t *testing.T) {
	t.Parallel()

	records := []domain.ChangeRecord{
		chainRecord(1, "aaa", ""),
		chainRecord(2, "bbb", "wrong"),
		chainRecord(3, "ccc", "bbb"),
		chainRecord(4, "ddd", "also-wrong"),
		chainRecord(5, "eee", "ddd"),
	}

	tl := domain.BuildTimeline("volume", "vol-1", records)

	assert.Equal(t, []int{1, 3}, tl.Anomalies)
	assert.False(t, tl.Verified())
}

func TestBuildTimeline_EveryLinkBroken(t *testing.T) {
	t.Parallel()

	records := []domain.ChangeRecord{
		chainRecord(1, "aaa", ""),
		chainRecord(2, "bbb", "x"),
		chainRecord(3, "ccc", "y"),
		chainRecord(4, "ddd", "z"),
	}

	tl := domain.BuildTimeline("volume", "vol-1", records)
	assert.Equal(t, []int{1, 2, 3}, tl.Anomalies)
}

// TestBuildTimeline_OutOfOrderInput pins that the walk trusts the given
// order. Records delivered out of persistence order surface as anomalies
// instead of being silently reordered.
func TestBuildTimeline_OutOfOrderInput(t *testing.T) {
	t.Parallel()

	records := []domain.ChangeRecord{
		chainRecord(2, "bbb", "aaa"),
		chainRecord(1, "aaa", ""),
		chainRecord(3, "ccc", "bbb"),
	}

	tl := domain.BuildTimeline("volume", "vol-1", records)
	assert.NotEmpty(t, tl.Anomalies)
	assert.Equal(t, []int{1, 2}, tl.Anomalies)
}

// ---------------------------------------------------------------------------
// 3. Input isolation.
// ---------------------------------------------------------------------------

func TestBuildTimeline_CopiesRecords(t *testing.T) {
	t.Parallel()

	records := []domain.ChangeRecord{
		chainRecord(1, "aaa", ""),
		chainRecord(2, "bbb", "aaa"),
	}

	tl := domain.BuildTimeline("volume", "vol-1", records)
	require.Len(t, tl.Records, 2)

	records[0].ChangeHash = "mutated"
	assert.Equal(t, "aaa", tl.Records[0].ChangeHash)
}
