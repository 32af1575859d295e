// internal/services/progress_analyzer.go
package services

import (
	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/models"
)

const (
	unknownTool = "unknown"
	rainbowTool = "rainbow"
	bucketTool  = "bucket"
)

// ProgressAnalyzer derives pace, tool usage and a complexity score from a
// drawing's action log. The thresholds come from the heuristic tables and
// are not calibrated against any reference data.
type ProgressAnalyzer struct {
	tables *config.Heuristics
}

func NewProgressAnalyzer(tables *config.Heuristics) *ProgressAnalyzer {
	return &ProgressAnalyzer{tables: tables}
}

// AnalyzeDrawingProgress returns the no_data sentinel for an empty log.
func (a *ProgressAnalyzer) AnalyzeDrawingProgress(timeLapse []models.TimeLapseEvent, duration float64) *models.ProgressAnalysis {
	if len(timeLapse) == 0 {
		return &models.ProgressAnalysis{Status: models.StatusNoData}
	}

	analysis := &models.ProgressAnalysis{
		TotalActions:    len(timeLapse),
		DrawingDuration: duration,
		ToolsUsed:       toolsUsed(timeLapse),
		DrawingPace:     a.drawingPace(timeLapse),
	}
	analysis.ComplexityScore = a.complexity(len(timeLapse), len(analysis.ToolsUsed))
	analysis.Suggestions = a.suggestions(analysis)
	return analysis
}

func toolsUsed(events []models.TimeLapseEvent) map[string]int {
	tools := make(map[string]int)
	for _, e := range events {
		tool := e.Tool
		if tool == "" {
			tool = unknownTool
		}
		tools[tool]++
	}
	return tools
}

// drawingPace measures actions per minute over the span between the first
// and last timestamped events. Timestamps are milliseconds.
func (a *ProgressAnalyzer) drawingPace(events []models.TimeLapseEvent) string {
	if len(events) < 2 {
		return models.PaceUnknown
	}

	var first, last float64
	stamped := 0
	for _, e := range events {
		if e.Timestamp == 0 {
			continue
		}
		if stamped == 0 {
			first = e.Timestamp
		}
		last = e.Timestamp
		stamped++
	}
	if stamped < 2 {
		return models.PaceUnknown
	}

	seconds := (last - first) / 1000
	apm := 0.0
	if seconds > 0 {
		apm = float64(len(events)) / (seconds / 60)
	}

	p := a.tables.Progress
	switch {
	case apm > p.FastAPM:
		return models.PaceFast
	case apm > p.ModerateAPM:
		return models.PaceModerate
	default:
		return models.PaceThoughtful
	}
}

func (a *ProgressAnalyzer) complexity(actions, distinctTools int) float64 {
	p := a.tables.Progress
	score := float64(actions)*p.ActionWeight + float64(distinctTools)*p.ToolWeight
	if score > p.MaxComplexity {
		return p.MaxComplexity
	}
	return score
}

// suggestions applies the rules in a fixed order and keeps the first few.
func (a *ProgressAnalyzer) suggestions(analysis *models.ProgressAnalysis) []string {
	p := a.tables.Progress
	text := p.Suggestions
	out := []string{}

	if analysis.ToolsUsed[rainbowTool] == 0 {
		out = append(out, text.TryRainbow)
	}
	if analysis.ToolsUsed[bucketTool] == 0 {
		out = append(out, text.TryBucket)
	}

	switch analysis.DrawingPace {
	case models.PaceFast:
		out = append(out, text.SlowDown)
	case models.PaceThoughtful:
		out = append(out, text.PraiseDetail)
	}

	if analysis.ComplexityScore < p.LowComplexity {
		out = append(out, text.AddElements)
	} else if analysis.ComplexityScore > p.HighComplexity {
		out = append(out, text.PraiseMasterpiece)
	}

	if len(out) > p.MaxSuggestions {
		out = out[:p.MaxSuggestions]
	}
	return out
}
