package domain

import (
	"time"
)

const (
	// UnknownGroup is the bucket name for records with no project or
	// domain attribution.
	UnknownGroup = "N/A"

	// ResourceTypeDeletion is the reserved tombstone type. The backend
	// emits one final record with this type when a tracked resource is
	// removed from the live inventory.
	ResourceTypeDeletion = "deletion"

	// DateLayout is the calendar-day format used by all aggregations.
	DateLayout = "2006-01-02"
)

// ChangeRecord is one observed mutation of a tracked resource, exactly as
// reported by the change-history backend. Records are immutable once
// fetched. Project and domain names are denormalized onto every record at
// write time, so history stays attributable after the resource itself has
// been deleted from the live inventory.
type ChangeRecord struct {
	ResourceType      string     `json:"resourceType"`
	ResourceID        string     `json:"resourceId"`
	ResourceName      string     `json:"resourceName,omitempty"`
	ChangeHash        string     `json:"changeHash"`
	PreviousHash      string     `json:"previousHash,omitempty"`
	ChangeSequence    int64      `json:"changeSequence"`
	RecordedAt        time.Time  `json:"recordedAt"`
	ActualTime        *time.Time `json:"actualTime,omitempty"` // backend estimate; may precede RecordedAt
	ProjectName       string     `json:"projectName,omitempty"`
	DomainName        string     `json:"domainName,omitempty"`
	ChangeDescription string     `json:"changeDescription,omitempty"`
}

// EffectiveTime returns the backend's estimate of when the change really
// happened, falling back to the ingestion timestamp when no estimate was
// recorded. All time-based filtering, sorting, and bucketing uses this.
func (r ChangeRecord) EffectiveTime() time.Time {
	if r.ActualTime != nil && !r.ActualTime.IsZero() {
		return *r.ActualTime
	}
	return r.RecordedAt
}

// DisplayLabel returns the human-readable name when the backend captured
// one, otherwise the resource ID.
func (r ChangeRecord) DisplayLabel() string {
	if r.ResourceName != "" {
		return r.ResourceName
	}
	return r.ResourceID
}

// IsTombstone reports whether this record marks the deletion of a resource.
func (r ChangeRecord) IsTombstone() bool {
	return r.ResourceType == ResourceTypeDeletion
}

// ProjectGroup returns the record's project attribution, mapping missing
// values to UnknownGroup so grouping and filtering see a stable key.
func (r ChangeRecord) ProjectGroup() string {
	if r.ProjectName == "" {
		return UnknownGroup
	}
	return r.ProjectName
}

// DomainGroup returns the record's domain attribution, mapping missing
// values to UnknownGroup. Filtering matches against this denormalized value
// rather than the live inventory, so records of deleted resources keep
// their domain.
func (r ChangeRecord) DomainGroup() string {
	if r.DomainName == "" {
		return UnknownGroup
	}
	return r.DomainName
}
