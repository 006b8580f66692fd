package domain

import (
	"slices"
)

// ResourceTimeline is the complete change sequence for one resource in the
// order the backend persisted it, together with the positions where the
// integrity hash chain is broken.
type ResourceTimeline struct {
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Records      []ChangeRecord `json:"records"`
	// Anomalies holds the zero-based indices of records whose previousHash
	// does not equal the changeHash of the record before them.
	Anomalies []int `json:"anomalies"`
}

// BuildTimeline verifies the hash chain over records, which must be in the
// backend's persistence order (ascending changeSequence). Every broken link
// is reported as an anomaly at the index of the later record; the first
// record has no predecessor and is never an anomaly. Broken links do not
// abort the walk, so a timeline with anomalies still carries every record.
func BuildTimeline(resourceType, resourceID string, records []ChangeRecord) ResourceTimeline {
	tl := ResourceTimeline{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Records:      slices.Clone(records),
		Anomalies:    []int{},
	}
	for i := 1; i < len(tl.Records); i++ {
		if tl.Records[i].PreviousHash != tl.Records[i-1].ChangeHash {
			tl.Anomalies = append(tl.Anomalies, i)
		}
	}
	return tl
}

// Verified reports whether the hash chain held across the whole timeline.
func (t ResourceTimeline) Verified() bool {
	return len(t.Anomalies) == 0
}
