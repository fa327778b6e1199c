// Package sparring produces coaching turns for a practice conversation with a
// registered person and keeps every turn well-formed, falling back to
// templated output when the model cannot produce an acceptable candidate.
package sparring

import (
	"strings"
	"time"

	"deepdive/internal/llm"
	"deepdive/internal/models"
)

// ContextRef points at an earlier sparring session used as prompt context.
type ContextRef struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	Goal      string    `json:"goal,omitempty"`
	Scenario  string    `json:"scenario"`
}

type Response struct {
	Mode             models.SparringMode `json:"mode"`
	AnalysisSummary  string              `json:"analysis_summary"`
	Recommendations  []string            `json:"recommendations"`
	FollowUpQuestion string              `json:"follow_up_question"`
	RoleplayReply    string              `json:"roleplay_reply"`
	CoachFeedback    string              `json:"coach_feedback"`
	NextOptions      []string            `json:"next_options"`
	RiskNote         string              `json:"risk_note"`
	GoalProgress     models.GoalProgress `json:"goal_progress"`
	ContextRefs      []ContextRef        `json:"context_refs"`
}

// CombinedText joins the fields the quality gate compares against the
// conversation.
func (r Response) CombinedText() string {
	return strings.Join([]string{
		r.AnalysisSummary,
		strings.Join(r.Recommendations, "\n"),
		r.RoleplayReply,
		r.CoachFeedback,
		strings.Join(r.NextOptions, "\n"),
	}, "\n")
}

// PersonFitText joins the fields the person-fit heuristic scans for markers.
func (r Response) PersonFitText() string {
	return strings.Join([]string{
		r.RoleplayReply,
		r.CoachFeedback,
		strings.Join(r.NextOptions, "\n"),
	}, "\n")
}

// AssistantText is how a turn is recorded in the conversation history.
func (r Response) AssistantText() string {
	return "相手役: " + r.RoleplayReply + "\n\nコーチ: " + r.CoachFeedback
}

type TurnRequest struct {
	SessionID      string
	PersonID       string
	Goal           string
	Scenario       string
	Mode           models.SparringMode
	History        []models.ConversationTurn
	ContextNoteIDs []string
}

type TurnResult struct {
	Response Response
	Model    string
	Attempts int
	Fallback bool
}

const (
	SchemaName  = "sparring_response"
	FallbackTag = "-fallback"
	LocalModel  = "fallback-local"
)

var responseSchema = llm.Object(map[string]*llm.Schema{
	"mode":               llm.Enum(string(models.ModePreReflect), string(models.ModePreStrategy), string(models.ModeFacilitation)),
	"analysis_summary":   llm.String(),
	"recommendations":    llm.StringArray(),
	"follow_up_question": llm.String(),
	"roleplay_reply":     llm.String(),
	"coach_feedback":     llm.String(),
	"next_options":       llm.StringArray(),
	"risk_note":          llm.String(),
	"goal_progress":      llm.Enum(string(models.ProgressLow), string(models.ProgressMid), string(models.ProgressHigh)),
})

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
