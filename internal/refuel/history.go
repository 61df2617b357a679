package refuel

import (
	"math"
	"sort"
)

// DeriveHistory orders an unordered record set into a mileage history and
// computes summary statistics. It is a pure function: records are not
// modified, and the same input always produces the same output.
//
// Records are sorted by odometer descending, so index 0 is the most recent
// fill-up. Equal odometer values keep their relative input order (stable
// sort). Each entry's distance is the odometer gap to the next-lower entry;
// the earliest record has no predecessor and gets distance 0.
//
// A non-positive distance (out-of-order odometer entry) or non-positive fuel
// amount clamps mileage to 0 instead of failing. NaN inputs fall into the
// same clamp branch, so derivation never panics on malformed records.
//
// Stats is nil unless there are at least two records.
func DeriveHistory(records []*Record) ([]*HistoryEntry, *Stats) {
	history := make([]*HistoryEntry, 0, len(records))

	sorted := make([]*Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Odometer > sorted[j].Odometer
	})

	for i, r := range sorted {
		entry := &HistoryEntry{Record: *r}
		if i < len(sorted)-1 {
			entry.Distance = r.Odometer - sorted[i+1].Odometer
			if entry.Distance > 0 && r.FuelAmount > 0 {
				entry.Mileage = round2(entry.Distance / r.FuelAmount)
			}
		}
		history = append(history, entry)
	}

	if len(history) < 2 {
		return history, nil
	}

	stats := &Stats{
		TotalDistance: history[0].Odometer - history[len(history)-1].Odometer,
		LastMileage:   round1(history[0].Mileage),
	}

	var sum float64
	var count int
	for _, entry := range history {
		if entry.Mileage > 0 {
			sum += entry.Mileage
			count++
		}
	}
	if count > 0 {
		stats.AvgMileage = round1(sum / float64(count))
	}

	return history, stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
