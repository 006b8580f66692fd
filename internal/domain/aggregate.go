package domain

import (
	"sort"
	"time"
)

// DailyChangeCount is one (UTC calendar date, resource type) bucket of the
// daily summary. Date uses DateLayout.
type DailyChangeCount struct {
	Date         string `json:"date"`
	ResourceType string `json:"resourceType"`
	Count        int    `json:"count"`
}

// TypeVelocity describes how frequently one resource type changes per day,
// measured over the days on which it was observed at all.
type TypeVelocity struct {
	ResourceType string  `json:"resourceType"`
	AvgPerDay    float64 `json:"avgPerDay"`
	MaxPerDay    int     `json:"maxPerDay"`
	MinPerDay    int     `json:"minPerDay"`
	DaysTracked  int     `json:"daysTracked"`
}

// ResourceActivity ranks one resource by how often it changed.
type ResourceActivity struct {
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	ResourceName string    `json:"resourceName,omitempty"`
	ChangeCount  int       `json:"changeCount"`
	FirstChange  time.Time `json:"firstChange"`
	LastChange   time.Time `json:"lastChange"`
}

// utcDay truncates t to its UTC calendar day.
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailySummary buckets records by UTC calendar date and resource type,
// keeping only the trailing window of days ending on now's date. Buckets
// are counted from each record's EffectiveTime; empty buckets are omitted.
// The result is sorted by date then resource type and is identical for any
// permutation of the input.
func DailySummary(records []ChangeRecord, days int, now time.Time) []DailyChangeCount {
	if days <= 0 {
		return []DailyChangeCount{}
	}

	today := utcDay(now)
	cutoff := today.AddDate(0, 0, -(days - 1))

	type bucket struct {
		date string
		typ  string
	}
	counts := make(map[bucket]int)
	for _, rec := range records {
		day := utcDay(rec.EffectiveTime())
		if day.Before(cutoff) || day.After(today) {
			continue
		}
		counts[bucket{date: day.Format(DateLayout), typ: rec.ResourceType}]++
	}

	out := make([]DailyChangeCount, 0, len(counts))
	for b, n := range counts {
		out = append(out, DailyChangeCount{Date: b.date, ResourceType: b.typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ResourceType < out[j].ResourceType
	})
	return out
}

// VelocityStats computes per-type change velocity across all records. A
// type's average is total changes divided by the number of distinct UTC days
// it changed on, so sparse types are not diluted by quiet days. The result
// is sorted by resource type and is identical for any permutation of the
// input.
func VelocityStats(records []ChangeRecord) []TypeVelocity {
	perTypeDay := make(map[string]map[string]int)
	for _, rec := range records {
		day := utcDay(rec.EffectiveTime()).Format(DateLayout)
		byDay, ok := perTypeDay[rec.ResourceType]
		if !ok {
			byDay = make(map[string]int)
			perTypeDay[rec.ResourceType] = byDay
		}
		byDay[day]++
	}

	out := make([]TypeVelocity, 0, len(perTypeDay))
	for typ, byDay := range perTypeDay {
		v := TypeVelocity{ResourceType: typ, DaysTracked: len(byDay)}
		total := 0
		first := true
		for _, n := range byDay {
			total += n
			if n > v.MaxPerDay {
				v.MaxPerDay = n
			}
			if first || n < v.MinPerDay {
				v.MinPerDay = n
			}
			first = false
		}
		v.AvgPerDay = float64(total) / float64(v.DaysTracked)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceType < out[j].ResourceType })
	return out
}

// MostChanged ranks resources by change count, descending. Ties break on
// most recent change, then resource type, then resource ID, so the ranking
// is identical for any permutation of the input. The displayed name comes
// from the record with the highest changeSequence that carries one, which
// keeps renamed resources under their latest name. A limit of zero or less
// returns the full ranking.
func MostChanged(records []ChangeRecord, limit int) []ResourceActivity {
	type resourceKey struct {
		typ string
		id  string
	}
	type accumulator struct {
		act     ResourceActivity
		nameSeq int64
		named   bool
	}

	acc := make(map[resourceKey]*accumulator)
	for _, rec := range records {
		key := resourceKey{typ: rec.ResourceType, id: rec.ResourceID}
		ts := rec.EffectiveTime()
		a, ok := acc[key]
		if !ok {
			a = &accumulator{act: ResourceActivity{
				ResourceType: rec.ResourceType,
				ResourceID:   rec.ResourceID,
				FirstChange:  ts,
				LastChange:   ts,
			}}
			acc[key] = a
		}
		a.act.ChangeCount++
		if ts.Before(a.act.FirstChange) {
			a.act.FirstChange = ts
		}
		if ts.After(a.act.LastChange) {
			a.act.LastChange = ts
		}
		if rec.ResourceName != "" && (!a.named || rec.ChangeSequence > a.nameSeq) {
			a.act.ResourceName = rec.ResourceName
			a.nameSeq = rec.ChangeSequence
			a.named = true
		}
	}

	out := make([]ResourceActivity, 0, len(acc))
	for _, a := range acc {
		out = append(out, a.act)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChangeCount != out[j].ChangeCount {
			return out[i].ChangeCount > out[j].ChangeCount
		}
		if !out[i].LastChange.Equal(out[j].LastChange) {
			return out[i].LastChange.After(out[j].LastChange)
		}
		if out[i].ResourceType != out[j].ResourceType {
			return out[i].ResourceType < out[j].ResourceType
		}
		return out[i].ResourceID < out[j].ResourceID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
