package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const halfHour = 0.5

// EventDelta is one signed change in GPU usage at a point in time.
type EventDelta struct {
	Time  time.Time
	Delta int
}

// BuildEventDeltas splits forecast windows into a baseline usage at `now`
// plus signed future deltas.  A window straddling `now` contributes its
// GPUs to the baseline and schedules only its release; a future window
// schedules both its claim and its release.  Windows entirely in the past
// contribute nothing.
func BuildEventDeltas(windows []JobWindow, now time.Time) (baseline int, events []EventDelta) {
	for _, window := range windows {
		if !window.Start.After(now) && now.Before(window.End) {
			baseline += window.Gpus
			events = append(events, EventDelta{window.End, -window.Gpus})
			continue
		}
		if window.Start.After(now) {
			events = append(events, EventDelta{window.Start, window.Gpus})
			events = append(events, EventDelta{window.End, -window.Gpus})
		}
	}
	return baseline, events
}

// GroupEventDeltas collapses events sharing an identical timestamp into a
// single net delta, ordered by time.
func GroupEventDeltas(events []EventDelta) []EventDelta {
	sorted := make([]EventDelta, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	var grouped []EventDelta
	for _, event := range sorted {
		if n := len(grouped); n > 0 && grouped[n-1].Time.Equal(event.Time) {
			grouped[n-1].Delta += event.Delta
			continue
		}
		grouped = append(grouped, event)
	}
	return grouped
}

// ChooseHorizon returns the plotting horizon: the caller's cap when given
// (floored at one hour), otherwise the latest scheduled end, otherwise six
// hours out.
func ChooseHorizon(windows []JobWindow, now time.Time, horizonHours float64, haveHorizon bool) time.Time {
	if haveHorizon {
		return now.Add(hoursToDuration(max(horizonHours, 1.0)))
	}
	var latest time.Time
	for _, window := range windows {
		if window.End.After(now) && window.End.After(latest) {
			latest = window.End
		}
	}
	if latest.IsZero() {
		return now.Add(6 * time.Hour)
	}
	return latest
}

// BuildStepSeries converts baseline usage plus grouped events into a
// stepwise series.  Each event inside the horizon emits two samples at the
// same timestamp, the pre-event and post-event usage, so that plotting the
// points pairwise draws true steps.  The series always ends exactly at the
// horizon.
func BuildStepSeries(now time.Time, baseline int, groupedEvents []EventDelta, horizon time.Time) ([]time.Time, []int) {
	times := []time.Time{now}
	usage := []int{baseline}
	current := baseline
	for _, event := range groupedEvents {
		if event.Time.Before(now) || event.Time.After(horizon) {
			continue
		}
		times = append(times, event.Time)
		usage = append(usage, current)
		current += event.Delta
		times = append(times, event.Time)
		usage = append(usage, current)
	}
	if times[len(times)-1].Before(horizon) {
		times = append(times, horizon)
		usage = append(usage, current)
	}
	return times, usage
}

// AvailableSeries converts usage values into non-negative availability
// against a fixed capacity.
func AvailableSeries(usage []int, capacity int) []int {
	available := make([]int, len(usage))
	for i, used := range usage {
		available[i] = max(capacity-used, 0)
	}
	return available
}

// StepValueAt samples a step-post series at one timestamp: the value is
// the last series value whose time is not after the query.  Queries before
// the series start get the first value; queries after the end get the
// last.
func StepValueAt(query time.Time, times []time.Time, values []int) int {
	value := values[0]
	for i, seriesTime := range times {
		if seriesTime.After(query) {
			break
		}
		value = values[i]
	}
	return value
}

// HalfHourOffsets returns relative hour offsets at 30-minute spacing from
// zero through the horizon, including a partial final step.
func HalfHourOffsets(horizonHours float64) []float64 {
	steps := max(1, int(math.Round(horizonHours/halfHour)))
	offsets := make([]float64, steps+1)
	for i := range offsets {
		offsets[i] = float64(i) * halfHour
	}
	return offsets
}

// FormatRelativeHours formats a relative offset as tick text, "+2h" for
// whole hours and "+1.5h" otherwise, rounded to the nearest half hour.
func FormatRelativeHours(hoursFromNow float64) string {
	rounded := math.Round(hoursFromNow*2.0) / 2.0
	if math.Abs(rounded-math.Trunc(rounded)) < 1e-9 {
		return fmt.Sprintf("+%dh", int(rounded))
	}
	return fmt.Sprintf("+%.1fh", rounded)
}
