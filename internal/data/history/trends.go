package history

import (
	"fmt"
	"math"
	"time"
)

// BuildTrendReport derives deltas between consecutive runs and moving
// averages over window. A non-positive window averages each run alone.
func BuildTrendReport(project string, runs []Run, window time.Duration) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs recorded for project %q", projectKey(project))
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			Timestamp:          current.Timestamp,
			SnapshotHash:       current.SnapshotHash,
			NodeCount:          current.NodeCount,
			EdgeCount:          current.EdgeCount,
			ErrorCount:         current.ErrorCount,
			WarningCount:       current.WarningCount,
			CycleCount:         current.CycleCount,
			OrphanCount:        current.OrphanCount,
			CriticalPathWeight: current.CriticalPathWeight,
		}

		if i > 0 {
			prev := runs[i-1]
			point.DeltaNodes = current.NodeCount - prev.NodeCount
			point.DeltaEdges = current.EdgeCount - prev.EdgeCount
			point.DeltaErrors = current.ErrorCount - prev.ErrorCount
			point.DeltaWarnings = current.WarningCount - prev.WarningCount
			point.DeltaCycles = current.CycleCount - prev.CycleCount
			point.DeltaOrphans = current.OrphanCount - prev.OrphanCount
			point.DeltaCriticalPath = round2(current.CriticalPathWeight - prev.CriticalPathWeight)
			if prev.NodeCount > 0 {
				point.NodeGrowthPct = round2(float64(point.DeltaNodes) / float64(prev.NodeCount) * 100)
			}
		}

		avgErrors, avgCycles := movingAverages(runs, i, window)
		point.AvgErrors = round2(avgErrors)
		point.AvgCycles = round2(avgCycles)
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		Project:       projectKey(project),
		Since:         runs[0].Timestamp,
		Until:         runs[len(runs)-1].Timestamp,
		Window:        window.String(),
		RunCount:      len(points),
		Points:        points,
	}, nil
}

func movingAverages(runs []Run, index int, window time.Duration) (float64, float64) {
	if window <= 0 {
		return float64(runs[index].ErrorCount), float64(runs[index].CycleCount)
	}

	cutoff := runs[index].Timestamp.Add(-window)
	var errorsTotal, cyclesTotal, count int
	for i := index; i >= 0; i-- {
		if runs[i].Timestamp.Before(cutoff) {
			break
		}
		errorsTotal += runs[i].ErrorCount
		cyclesTotal += runs[i].CycleCount
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return float64(errorsTotal) / float64(count), float64(cyclesTotal) / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
