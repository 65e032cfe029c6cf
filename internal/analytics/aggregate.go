// Package analytics derives per-tool summary statistics from a trace
// window. The reduction is pure and recomputed from scratch on every
// call; trace volume per tenant view is assumed to fit in memory.
package analytics

import (
	"sort"

	"github.com/etale-systems/tracehub/internal/domain"
)

// ToolStats summarizes all invocations of one tool.
type ToolStats struct {
	Name             string         `json:"name"`
	TotalCalls       int            `json:"totalCalls"`
	SuccessCalls     int            `json:"successCalls"`
	ErrorCalls       int            `json:"errorCalls"`
	SuccessRate      float64        `json:"successRate"`
	AvgExecutionTime float64        `json:"avgExecutionTime"`
	MinExecutionTime float64        `json:"minExecutionTime"`
	MaxExecutionTime float64        `json:"maxExecutionTime"`
	ErrorTypes       map[string]int `json:"errorTypes"`
}

// Aggregate reduces a trace window to per-tool statistics, sorted by
// call count descending. A trace counts as successful unless its
// metadata explicitly carries success=false. Unrecorded execution
// times enter the average as zero, matching the reference dashboard.
func Aggregate(traces []*domain.Trace) []ToolStats {
	type acc struct {
		stats ToolStats
		sum   float64
	}

	tools := make(map[string]*acc)
	var order []string

	for _, tr := range traces {
		md := domain.ParseTraceMetadata(tr.Metadata)

		a, ok := tools[md.ToolName]
		if !ok {
			a = &acc{stats: ToolStats{
				Name:       md.ToolName,
				ErrorTypes: make(map[string]int),
			}}
			tools[md.ToolName] = a
			order = append(order, md.ToolName)
		}

		a.stats.TotalCalls++
		a.sum += md.ExecutionTimeMS

		if a.stats.TotalCalls == 1 {
			a.stats.MinExecutionTime = md.ExecutionTimeMS
			a.stats.MaxExecutionTime = md.ExecutionTimeMS
		} else {
			if md.ExecutionTimeMS < a.stats.MinExecutionTime {
				a.stats.MinExecutionTime = md.ExecutionTimeMS
			}
			if md.ExecutionTimeMS > a.stats.MaxExecutionTime {
				a.stats.MaxExecutionTime = md.ExecutionTimeMS
			}
		}

		if md.Success {
			a.stats.SuccessCalls++
		} else {
			a.stats.ErrorCalls++
			a.stats.ErrorTypes[md.ErrorType]++
		}
	}

	out := make([]ToolStats, 0, len(tools))
	for _, name := range order {
		a := tools[name]
		a.stats.AvgExecutionTime = a.sum / float64(a.stats.TotalCalls)
		a.stats.SuccessRate = float64(a.stats.SuccessCalls) / float64(a.stats.TotalCalls) * 100
		out = append(out, a.stats)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalCalls > out[j].TotalCalls
	})

	return out
}
