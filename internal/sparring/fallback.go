package sparring

import (
	"strings"
	"unicode/utf8"

	"deepdive/internal/models"
	"deepdive/internal/quality"
)

var concernWords = []string{"退職", "辞め", "難しい", "無理", "避けたい", "不安", "懸念"}

var modeLabels = map[models.SparringMode]string{
	models.ModePreReflect:   "事前振り返り",
	models.ModePreStrategy:  "事前戦略",
	models.ModeFacilitation: "ファシリ支援",
}

var modeRecommendations = map[models.SparringMode][]string{
	models.ModePreReflect: {
		"直近の失敗要因を「事実」「解釈」「感情」に分けて1行ずつ整理する。",
		"次の会話で変える点を1つだけ決め、最初の30秒で実行する言い回しを先に用意する。",
		"相手が防衛的になりそうな論点を1つ決め、先回りの一言を準備する。",
	},
	models.ModePreStrategy: {
		"結論→理由2点→確認事項の順で話す下書きを先に作る。",
		"相手に選ばせる選択肢を2案に絞り、どちらを推すか明示する。",
		"反論されやすい点を1つだけ先出しし、対処案を添える。",
	},
	models.ModeFacilitation: {
		"会議冒頭で「今日決めること・決めないこと」を1分で宣言する。",
		"論点を『方向性 / 戦略 / 戦術』の3層に分け、今どこを話しているか固定する。",
		"発言が散ったら、論点に戻す問いを1つだけ繰り返す。",
	},
}

var (
	questionCoaching = []string{
		"質問形式は有効です。浅くしないために、(1)相手が止まる論点 (2)その論点を前に進める事実 (3)確認したい判断の順で話してください。",
		"問いの立て方は良いです。次は『あなたの提案1行→根拠2点→相手に決めてほしい1点』の型で、会話の主導権を取り戻してください。",
	}
	statementCoaching = []string{
		"主張は伝わっています。次は『事実→打ち手→判断依頼』の3段にし、各段で相手が反論しそうな点を1つ先回りしてください。",
		"論点は明確です。次は『何が問題か』より『どう進めるか』を先頭に置き、責任論に流れた時の戻し文を1文だけ準備してください。",
	}
)

const (
	shortUserRunes     = 140
	vagueScenarioRunes = 40
	vagueUserRunes     = 20
	highProgressRunes  = 80
	midProgressRunes   = 30
)

type FallbackInput struct {
	Mode              models.SparringMode
	Goal              string
	Scenario          string
	LastUser          string
	PreviousAssistant string
	Person            models.Person
}

func counterpartReplies(label string, question, concern bool) []string {
	const suffix = "」と返す可能性が高いです。"
	prefix := label + "の立場なら「"
	switch {
	case question:
		return []string{
			prefix + "質問には答える。加えて、結論と期限を明確にしてほしい" + suffix,
			prefix + "問いの意図は理解。判断に必要な条件を先に示してほしい" + suffix,
		}
	case concern:
		return []string{
			prefix + "懸念は理解した。まず打った手と残るリスクを分けて示してほしい" + suffix,
			prefix + "課題認識は共有。次は実施済み対応と不足点を整理してほしい" + suffix,
		}
	default:
		return []string{
			prefix + "方向性は理解。意思決定に必要な材料を短く出してほしい" + suffix,
			prefix + "提案は受け取った。比較軸をそろえて説明してほしい" + suffix,
		}
	}
}

func fallbackOptions(a models.StyleAxes) []string {
	phrasing := "結論先出しで"
	if a.Directness == models.Indirect {
		phrasing = "相談形で"
	}
	optionA := "いまの発言を踏まえ、背景・事実・現状リスクを分けて" + phrasing + "共有します。"
	if a.Verbosity == models.Short {
		optionA = "いまの発言を踏まえ、事実を3点だけ" + phrasing + "共有します。"
	}
	optionB := "維持策と影響最小化策を並べるので、判断軸を確認した上で優先順位を決めたいです。"
	if a.DecisionSpeed == models.Fast {
		optionB = "維持策と影響最小化策を並べるので、優先順位を今ここで決めてください。"
	}
	optionC := "部長視点で、意思決定に足りない情報は何でしょうか。"
	if a.Emphasis == models.Emotional {
		optionC = "部長視点で、チームの安心感を保つために不足している配慮は何でしょうか。"
	}
	return []string{optionA, optionB, optionC}
}

func goalProgress(lastUser string) models.GoalProgress {
	n := utf8.RuneCountInString(lastUser)
	switch {
	case n > highProgressRunes:
		return models.ProgressHigh
	case n > midProgressRunes:
		return models.ProgressMid
	default:
		return models.ProgressLow
	}
}

// Fallback builds a shape-valid turn from templates. Template variants are
// chosen by a hash of the inputs, so identical inputs give identical output.
func Fallback(in FallbackInput) Response {
	mode := in.Mode
	if !mode.Valid() {
		mode = models.ModeFacilitation
	}
	label := in.Person.Label()
	trimmedUser := strings.TrimSpace(in.LastUser)
	shortUser := truncateRunes(trimmedUser, shortUserRunes)
	if shortUser == "" {
		shortUser = "（まだ返信なし）"
	}
	hasQuestion := strings.ContainsAny(in.LastUser, "?？")
	hasConcern := false
	for _, w := range concernWords {
		if strings.Contains(in.LastUser, w) {
			hasConcern = true
			break
		}
	}
	isVague := utf8.RuneCountInString(strings.TrimSpace(in.Scenario)) < vagueScenarioRunes ||
		utf8.RuneCountInString(trimmedUser) < vagueUserRunes

	replySeed := strings.Join([]string{in.LastUser, in.Scenario, in.Goal, label, in.PreviousAssistant}, "|")
	reply := quality.PickBySeed(counterpartReplies(label, hasQuestion, hasConcern), replySeed)

	coaching := statementCoaching
	if hasQuestion {
		coaching = questionCoaching
	}
	feedback := quality.PickBySeed(coaching, replySeed+"|coach")

	var followUp string
	switch {
	case isVague:
		followUp = "一般論を避けるために1点だけ教えてください。今回いちばん避けたい失敗は何ですか？"
	case mode == models.ModeFacilitation:
		followUp = "次回会議で、あなたが最初の1分で置ける論点整理は何にしますか？"
	default:
		followUp = "この案を実行する場面は、1on1・定例会議・チャットのどれですか？"
	}

	focus := "伝達順序と合意形成"
	if hasConcern {
		focus = "リスク処理と意思決定"
	}

	var roleplay string
	if mode == models.ModeFacilitation {
		roleplay = reply + "\n\nあなたの直近発言: " + shortUser
	}

	recs := modeRecommendations[mode]
	return Response{
		Mode:             mode,
		AnalysisSummary:  modeLabels[mode] + "として見ると、直近発話は「" + shortUser + "」で、主論点は" + focus + "です。",
		Recommendations:  append([]string(nil), recs...),
		FollowUpQuestion: followUp,
		RoleplayReply:    roleplay,
		CoachFeedback:    feedback,
		NextOptions:      fallbackOptions(in.Person.Axes),
		RiskNote:         "目的「" + orUnset(in.Goal) + "」に対して、意図が強すぎる表現は政治的リスクになります。",
		GoalProgress:     goalProgress(in.LastUser),
		ContextRefs:      []ContextRef{},
	}
}
