package parser

import (
	"errors"
	"fmt"
	"math"
)

// ErrTimeline is wrapped by every timeline reconstruction failure.
var ErrTimeline = errors.New("invalid segment timeline")

// TimelineEntry is one S element of a SegmentTimeline.
type TimelineEntry struct {
	T *int64 `xml:"t,attr"`
	D int64  `xml:"d,attr"`
	R int64  `xml:"r,attr"`
}

// ExplicitTimeline expands (t, d, r) entries into segment start times.
// An entry without t continues from the running cursor; the first entry
// must carry one. A negative r repeats until the next entry's t, or for
// the last entry until periodEnd. periodEnd <= 0 means unknown.
func ExplicitTimeline(entries []TimelineEntry, periodEnd int64) ([]int64, error) {
	var (
		times     []int64
		cursor    int64
		hasCursor bool
	)

	for i, s := range entries {
		if s.T != nil {
			cursor = *s.T
			hasCursor = true
		}
		if !hasCursor {
			return nil, fmt.Errorf("%w: entry %d has no start time", ErrTimeline, i)
		}
		if s.D <= 0 {
			return nil, fmt.Errorf("%w: entry %d has duration %d", ErrTimeline, i, s.D)
		}

		repeat := s.R
		if repeat < 0 {
			limit := periodEnd
			if i+1 < len(entries) && entries[i+1].T != nil {
				limit = *entries[i+1].T
			}
			if limit <= 0 {
				return nil, fmt.Errorf("%w: entry %d repeats to an unknown end", ErrTimeline, i)
			}
			repeat = (limit-cursor+s.D-1)/s.D - 1
			if repeat < 0 {
				repeat = 0
			}
		}

		for k := int64(0); k <= repeat; k++ {
			times = append(times, cursor+k*s.D)
		}
		cursor += (repeat + 1) * s.D
	}

	return times, nil
}

// InferredTimeline returns segment numbers for a constant cadence:
// floor(periodSeconds / (duration / timescale)) numbers from startNumber.
// A trailing partial segment is not counted.
func InferredTimeline(startNumber, duration, timescale int64, periodSeconds float64) ([]int64, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: segment duration %d", ErrTimeline, duration)
	}
	if timescale <= 0 {
		timescale = 1
	}
	if periodSeconds < 0 {
		return nil, fmt.Errorf("%w: period duration %gs", ErrTimeline, periodSeconds)
	}

	count := int64(math.Floor(periodSeconds * float64(timescale) / float64(duration)))
	numbers := make([]int64, 0, count)
	for n := startNumber; n < startNumber+count; n++ {
		numbers = append(numbers, n)
	}
	return numbers, nil
}
