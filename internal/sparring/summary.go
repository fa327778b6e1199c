package sparring

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/models"
)

const (
	SummarySchemaName      = "sparring_summary"
	summaryTurns           = 16
	summaryTemperature     = 0.4
	summaryAttempts        = 2
	summaryLastUserPreview = 32
	summaryFlow            = "summary"
)

var summarySchema = llm.Object(map[string]*llm.Schema{
	"learned_points": llm.StringArray(),
	"next_actions":   llm.StringArray(),
	"risk_watch":     llm.StringArray(),
})

type Summarizer struct {
	client  llm.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewSummarizer(client llm.Client, log *zap.Logger, m *metrics.Metrics) *Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{client: client, log: log.Named("summary"), metrics: m}
}

// Summarize condenses a finished sparring conversation into learned points,
// next actions and risks to watch, three of each at most.
func (s *Summarizer) Summarize(ctx context.Context, goal, scenario string, turns []models.ConversationTurn) models.SparringSummary {
	if s.client == nil {
		s.metrics.Fallback(summaryFlow, "no_model")
		return FallbackSummary(turns, goal)
	}

	tail := turns
	if len(tail) > summaryTurns {
		tail = tail[len(tail)-summaryTurns:]
	}
	prompt := strings.Join([]string{
		"あなたはコミュニケーション壁打ちの振り返りコーチです。",
		"会話ログを要約し、学びを実務で再現できる形にしてください。",
		"learned_points/next_actions/risk_watch を各3件、短く具体に。",
		"ゴール: " + orUnset(goal),
		"状況: " + scenario,
		"会話: " + mustJSON(tail),
	}, "\n")

	for i := 0; i < summaryAttempts; i++ {
		p := prompt
		if i > 0 {
			p += "\n" + StrictHint
		}
		raw, err := s.client.Generate(ctx, p, &llm.GenOptions{
			Temperature: llm.Temp(summaryTemperature),
			SchemaName:  SummarySchemaName,
			Schema:      summarySchema,
		})
		if err != nil {
			s.log.Warn("model call failed", zap.Int("attempt", i+1), zap.Error(err))
			s.metrics.Attempt(summaryFlow, "call_error")
			if llm.IsPermanent(err) {
				s.metrics.Fallback(summaryFlow, "provider_error")
				return FallbackSummary(turns, goal)
			}
			continue
		}
		var out models.SparringSummary
		if err := llm.DecodeObject(raw, &out); err != nil {
			s.log.Warn("unparseable model output", zap.Int("attempt", i+1), zap.Error(err))
			s.metrics.Attempt(summaryFlow, "parse_error")
			continue
		}
		summary := models.SparringSummary{
			LearnedPoints: capList(nonEmpty(out.LearnedPoints), maxListItems),
			NextActions:   capList(nonEmpty(out.NextActions), maxListItems),
			RiskWatch:     capList(nonEmpty(out.RiskWatch), maxListItems),
		}
		if len(summary.LearnedPoints) == 0 || len(summary.NextActions) == 0 || len(summary.RiskWatch) == 0 {
			s.log.Warn("summary missing a list", zap.Int("attempt", i+1))
			s.metrics.Attempt(summaryFlow, "invalid_shape")
			continue
		}
		s.metrics.Attempt(summaryFlow, "accepted")
		return summary
	}

	s.metrics.Fallback(summaryFlow, "exhausted")
	return FallbackSummary(turns, goal)
}

// FallbackSummary is the templated summary used without a usable model.
func FallbackSummary(turns []models.ConversationTurn, goal string) models.SparringSummary {
	learned := "ゴールを先に明示すると会話がぶれにくい。"
	if goal != "" {
		learned = "ゴール「" + goal + "」に対して、論点整理を先に置くと話が進みやすい。"
	}
	reuse := "使用した表現を1つメモ化して再利用する。"
	if lastUser := models.LastContent(turns, models.RoleUser); lastUser != "" {
		reuse = "最後の発言「" + truncateRunes(lastUser, summaryLastUserPreview) + "...」を短文化して再利用する。"
	}
	return models.SparringSummary{
		LearnedPoints: []string{
			learned,
			"相手の懸念を先読みして、比較軸を添えると反発を下げやすい。",
			"意見より事実（観測情報）を先に出すと合意形成しやすい。",
		},
		NextActions: []string{
			"次回は冒頭30秒で目的・現状・相談点を1セットで伝える。",
			"相手の優先軸（人数維持/業務安定）を質問で確認してから提案する。",
			reuse,
		},
		RiskWatch: []string{
			"結論を急ぎすぎると意図が強すぎる印象になる。",
			"代替案がないまま離職前提で話すと政治的リスクが高い。",
			"相手の立場を飛ばすと防衛反応を誘発しやすい。",
		},
	}
}
