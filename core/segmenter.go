package core

import (
	"fmt"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// Segmenter groups raw activity snapshots into time-bounded segments of
// consistent context. Each call is independent and deterministic given the
// same inputs.
type Segmenter struct {
	gap    time.Duration
	sample time.Duration
	loc    *time.Location
}

// NewSegmenter builds a segmenter from the validated config.
func NewSegmenter(cfg *contract.Config) *Segmenter {
	return &Segmenter{
		gap:    cfg.GapThreshold,
		sample: contract.DefaultSampleSecs * time.Second,
		loc:    cfg.Location,
	}
}

// Segment scans snapshots in timestamp order and emits segments. A new
// segment starts when the active context changes, the gap since the
// previous snapshot exceeds the gap threshold, or a day boundary is
// crossed. Segments never span midnight. Out-of-order input is rejected
// with a validation error; the caller must re-sort before retrying.
func (s *Segmenter) Segment(snaps []schema.ActivitySnapshot) ([]schema.ActivitySegment, error) {
	if len(snaps) == 0 {
		return nil, nil
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Timestamp.Before(snaps[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: snapshot %d (%s) precedes snapshot %d (%s)",
				schema.ErrOutOfOrder, i, snaps[i].Timestamp.Format(time.RFC3339),
				i-1, snaps[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	var segments []schema.ActivitySegment
	var cur *segmentDraft

	for i := range snaps {
		snap := &snaps[i]
		span := s.snapshotSpan(snaps, i)
		key := ContextIdentity(snap)

		if cur != nil {
			gap := snap.Timestamp.Sub(cur.end)
			sameDay := sameLocalDay(cur.start, snap.Timestamp, s.loc)
			if cur.key != key || gap > s.gap || !sameDay {
				segments = append(segments, cur.seal())
				cur = nil
			} else if gap > 0 {
				// Contiguous same-context snapshots absorb small gaps as
				// idle time within the segment.
				cur.end = snap.Timestamp
				cur.idle += gap
			}
		}

		if cur == nil {
			cur = &segmentDraft{
				start: snap.Timestamp,
				end:   snap.Timestamp,
				key:   key,
				app:   snap.App,
			}
		}

		// Clip the trailing span at midnight so no segment crosses days.
		_, dayEnd := schema.DayBounds(snap.Timestamp, s.loc)
		end := snap.Timestamp.Add(span)
		if end.After(dayEnd) {
			end = dayEnd
		}
		if end.After(cur.end) {
			if snap.Idle {
				cur.idle += end.Sub(cur.end)
			}
			cur.end = end
		}
		cur.count++
		cur.snapshotIDs = append(cur.snapshotIDs, snap.ID)
	}
	if cur != nil {
		segments = append(segments, cur.seal())
	}
	return segments, nil
}

// snapshotSpan returns the duration attributed to snapshot i: the distance
// to the next snapshot when contiguous, otherwise the assumed capture
// interval.
func (s *Segmenter) snapshotSpan(snaps []schema.ActivitySnapshot, i int) time.Duration {
	if i+1 < len(snaps) {
		d := snaps[i+1].Timestamp.Sub(snaps[i].Timestamp)
		if d > 0 && d <= s.gap {
			return d
		}
	}
	return s.sample
}

// segmentDraft accumulates one in-progress segment.
type segmentDraft struct {
	start, end  time.Time
	key         string
	app         string
	count       int
	idle        time.Duration
	snapshotIDs []string
}

func (d *segmentDraft) seal() schema.ActivitySegment {
	seg := schema.ActivitySegment{
		ID:          schema.NewID(),
		Start:       d.start,
		End:         d.end,
		App:         d.app,
		ContextKey:  d.key,
		SampleCount: d.count,
		SnapshotIDs: d.snapshotIDs,
	}
	if dur := d.end.Sub(d.start); dur > 0 {
		ratio := float64(d.idle) / float64(dur)
		if ratio > 1 {
			ratio = 1
		}
		seg.IdleRatio = ratio
	}
	return seg
}

func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}

// ContextIdentity derives the grouping key for a snapshot: the application
// plus a normalized slice of its title or URL. Browser snapshots group by
// domain so tab-title churn does not fragment segments.
func ContextIdentity(snap *schema.ActivitySnapshot) string {
	if domain := URLDomain(snap.URL); domain != "" {
		return snap.App + "|" + domain
	}
	return snap.App + "|" + NormalizeTitle(snap.WindowTitle)
}
