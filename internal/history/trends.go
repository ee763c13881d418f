package history

import (
	"fmt"
	"math"
	"time"
)

// TrendPoint is one run with deltas against the previous run and a
// moving average over the window.
type TrendPoint struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	CommitHash   string    `json:"commit_hash,omitempty"`
	Total        int       `json:"total"`
	Fixed        int       `json:"fixed"`
	Unfixed      int       `json:"unfixed"`
	FixRatePct   float64   `json:"fix_rate_pct"`
	DeltaTotal   int       `json:"delta_total"`
	DeltaFixed   int       `json:"delta_fixed"`
	DeltaUnfixed int       `json:"delta_unfixed"`
	AvgFixed     float64   `json:"avg_fixed"`
	AvgUnfixed   float64   `json:"avg_unfixed"`
	WindowHours  float64   `json:"window_hours"`
}

type TrendReport struct {
	Since    time.Time    `json:"since"`
	Until    time.Time    `json:"until"`
	Window   string       `json:"window"`
	RunCount int          `json:"run_count"`
	Points   []TrendPoint `json:"points"`
}

// BuildTrendReport turns runs (oldest first) into a report with
// per-run deltas and windowed moving averages.
func BuildTrendReport(runs []Run, window time.Duration) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs available")
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			RunID:      current.ID,
			Timestamp:  current.StartedAt,
			CommitHash: current.CommitHash,
			Total:      current.Total,
			Fixed:      current.Fixed,
			Unfixed:    current.Unfixed,
		}
		if current.Total > 0 {
			point.FixRatePct = round2(float64(current.Fixed) / float64(current.Total) * 100)
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaTotal = current.Total - prev.Total
			point.DeltaFixed = current.Fixed - prev.Fixed
			point.DeltaUnfixed = current.Unfixed - prev.Unfixed
		}

		avgFixed, avgUnfixed := movingAverages(runs, i, window)
		point.AvgFixed = round2(avgFixed)
		point.AvgUnfixed = round2(avgUnfixed)
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		Since:    runs[0].StartedAt,
		Until:    runs[len(runs)-1].StartedAt,
		Window:   window.String(),
		RunCount: len(points),
		Points:   points,
	}, nil
}

func movingAverages(runs []Run, index int, window time.Duration) (float64, float64) {
	if window <= 0 {
		return float64(runs[index].Fixed), float64(runs[index].Unfixed)
	}

	cutoff := runs[index].StartedAt.Add(-window)
	var fixedTotal int
	var unfixedTotal int
	count := 0
	for i := index; i >= 0; i-- {
		if runs[i].StartedAt.Before(cutoff) {
			break
		}
		fixedTotal += runs[i].Fixed
		unfixedTotal += runs[i].Unfixed
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return float64(fixedTotal) / float64(count), float64(unfixedTotal) / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
