package formats

import (
	"encoding/json"
	"fmt"
	"strings"

	"planboard/internal/data/history"
)

func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tSnapshot\tNodes\tEdges\tErrors\tWarnings\tCycles\tOrphans\tCriticalPath\tDeltaNodes\tDeltaEdges\tDeltaErrors\tDeltaWarnings\tDeltaCycles\tDeltaOrphans\tDeltaCriticalPath\tNodeGrowthPct\tAvgErrors\tAvgCycles\tWindowHours\n")
	for _, point := range report.Points {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			point.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			shortHash(point.SnapshotHash),
			point.NodeCount,
			point.EdgeCount,
			point.ErrorCount,
			point.WarningCount,
			point.CycleCount,
			point.OrphanCount,
			point.CriticalPathWeight,
			point.DeltaNodes,
			point.DeltaEdges,
			point.DeltaErrors,
			point.DeltaWarnings,
			point.DeltaCycles,
			point.DeltaOrphans,
			point.DeltaCriticalPath,
			point.NodeGrowthPct,
			point.AvgErrors,
			point.AvgCycles,
			point.WindowHours,
		))
	}

	return []byte(buf.String()), nil
}

func RenderTrendJSON(report history.TrendReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
