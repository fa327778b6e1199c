package sparring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/models"
)

func validResponse() Response {
	return Response{
		Mode:            models.ModeFacilitation,
		AnalysisSummary: "部長へのリリース延期の伝え方が論点です。",
		Recommendations: []string{"延期の理由を先に示す", "影響範囲を比較して伝える"},
		RoleplayReply:   "リリース延期なら結論と理由を先に聞きたい。",
		CoachFeedback:   "**結論を先に**置き、延期の根拠を2点に絞りましょう。",
		NextOptions:     []string{"結論: 来週のリリースは延期します", "理由は品質リスクです", "影響と代替日を比較して示します"},
		GoalProgress:    models.ProgressMid,
	}
}

func TestValidateShape(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Response)
		rule   string
	}{
		{name: "valid", mutate: func(*Response) {}},
		{name: "blank summary", mutate: func(r *Response) { r.AnalysisSummary = "  " }, rule: "analysis_summary"},
		{name: "blank feedback", mutate: func(r *Response) { r.CoachFeedback = "" }, rule: "coach_feedback"},
		{name: "facilitation needs roleplay", mutate: func(r *Response) { r.RoleplayReply = " " }, rule: "roleplay_reply"},
		{name: "strategy ignores roleplay", mutate: func(r *Response) {
			r.Mode = models.ModePreStrategy
			r.RoleplayReply = ""
		}},
		{name: "one recommendation", mutate: func(r *Response) { r.Recommendations = []string{"a", " "} }, rule: "recommendations"},
		{name: "one option", mutate: func(r *Response) { r.NextOptions = []string{"only"} }, rule: "next_options"},
		{name: "near duplicate options", mutate: func(r *Response) {
			r.NextOptions = []string{"結論を先に。", "結論を 先に!", "「結論を先に」"}
		}, rule: "next_options_distinct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResponse()
			tt.mutate(&r)
			err := ValidateShape(r)
			if tt.rule == "" {
				assert.NoError(t, err)
				return
			}
			var se *ShapeError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.rule, se.Rule)
		})
	}
}

func TestCombinedText(t *testing.T) {
	r := Response{
		AnalysisSummary: "a",
		Recommendations: []string{"b", "c"},
		RoleplayReply:   "d",
		CoachFeedback:   "e",
		NextOptions:     []string{"f", "g"},
	}
	assert.Equal(t, "a\nb\nc\nd\ne\nf\ng", r.CombinedText())
	assert.Equal(t, "d\ne\nf\ng", r.PersonFitText())
	assert.Equal(t, "相手役: d\n\nコーチ: e", r.AssistantText())
}
