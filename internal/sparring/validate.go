package sparring

import (
	"fmt"
	"strings"

	"deepdive/internal/models"
	"deepdive/internal/quality"
)

const (
	MinRecommendations = 2
	MinNextOptions     = 2
)

// ShapeError names the structural rule a candidate broke.
type ShapeError struct {
	Rule string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid response shape: %s", e.Rule)
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			out = append(out, it)
		}
	}
	return out
}

// ValidateShape checks the structural minimum of a candidate. The roleplay
// reply is required in FACILITATION mode only; it is not checked elsewhere.
func ValidateShape(r Response) error {
	if strings.TrimSpace(r.AnalysisSummary) == "" {
		return &ShapeError{Rule: "analysis_summary"}
	}
	if strings.TrimSpace(r.CoachFeedback) == "" {
		return &ShapeError{Rule: "coach_feedback"}
	}
	if r.Mode == models.ModeFacilitation && strings.TrimSpace(r.RoleplayReply) == "" {
		return &ShapeError{Rule: "roleplay_reply"}
	}
	if len(nonEmpty(r.Recommendations)) < MinRecommendations {
		return &ShapeError{Rule: "recommendations"}
	}
	options := nonEmpty(r.NextOptions)
	if len(options) < MinNextOptions {
		return &ShapeError{Rule: "next_options"}
	}
	distinct := make(map[string]struct{}, len(options))
	for _, o := range options {
		distinct[quality.Normalize(o)] = struct{}{}
	}
	if len(distinct) < MinNextOptions {
		return &ShapeError{Rule: "next_options_distinct"}
	}
	return nil
}
