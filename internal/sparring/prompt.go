package sparring

import (
	"encoding/json"
	"strings"
	"time"

	"deepdive/internal/models"
)

const (
	RetryHint  = "前回出力は文脈追従または差分が不足。直近ユーザー発話により具体的に反応し、前回と表現を変えること。"
	StrictHint = "厳密JSONのみ返してください。"
)

var modeInstructions = map[models.SparringMode][]string{
	models.ModePreReflect: {
		"【モード: 事前振り返り】",
		`roleplay_reply は空文字 "" にすること。`,
		"ユーザーの状況を深く分析し、analysis_summary に固有の事実・人物名・詰まりポイントを書く。",
		"coach_feedback でユーザーの思考の整理を手助けする。「なぜズレたか→どう直すか→次の一言例」の構成。",
		"recommendations に次アクションを2〜3件入れる。",
		"next_options は「ユーザーが次に考えるべき問い」または「次に取れるアプローチの選択肢」を3つ提示する。",
	},
	models.ModePreStrategy: {
		"【モード: 事前戦略】",
		`roleplay_reply は空文字 "" にすること。`,
		"状況を踏まえた具体的な作戦を recommendations に書く。",
		"coach_feedback で作戦の弱点と補強案を示す。",
		"next_options は「相手に言う一言目の候補」を意図が異なる3案で提示する。",
		"analysis_summary に状況分析を短く入れる。",
	},
	models.ModeFacilitation: {
		"【モード: ファシリ支援】",
		"相手役として1つだけ返答する。それを roleplay_reply に入れる。コーチとしてのメタ解説は roleplay_reply に混ぜない。",
		"coach_feedback はユーザー発言へのフィードバックのみ。相手役のセリフは含めない。",
		"analysis_summary は最小限でよい。",
		"recommendations に次アクションを2〜3件入れる。",
		"next_options は「ユーザーが次に相手に言う一言の候補」を3つ提示する。",
	},
}

var commonRules = []string{
	"回答は常にユーザー固有文脈ベース。一般的なマネージャー論・テンプレ論は禁止。",
	"coach_feedback では重要なポイントを **太字（Markdown記法）** で強調すること。",
	"coach_feedback は適切に段落を分け、1段落は2-3文を目安にすること。",
	"2往復目以降は、前回の助言からの進展・変化点を冒頭で明示すること。前回と同じ助言の繰り返しは禁止。新たに深掘りした部分や視点の変化を **太字** で強調すること。",
	"recommendations 配列の各要素に番号（1. 2. 3.）を付けないこと。番号はフロント側で付与する。",
	`follow_up_question は情報が不足している場合のみ1つだけ具体質問を返す。ユーザーの入力で状況・目的・相手が十分に把握できる場合は空文字 "" にすること。会話が2往復以上進んだ後は、追加質問よりも具体的な助言を優先する。`,
	"曖昧な一般論（例: 〜の可能性があります）だけで終えない。",
	`roleplay_reply はFACILITATIONモード以外では空文字 "" を返すこと。ロールプレイ要素を他フィールドに混入させないこと。`,
	"coach_feedback は浅い感想禁止。必ず『なぜズレたか→どう直すか→次の一言例』まで書く。",
	"analysis_summary は今回の状況固有名詞・事実・詰まりポイントを必ず含める。",
	"analysis_summary + coach_feedback + recommendations + roleplay_reply の合計は、日本語で500〜2000字に収める。",
	"禁止: 攻撃・威圧・不誠実な誘導。",
	"会話は実務的・中程度の長さ・次に動ける形。寄り添いは軽め。",
	"最重要: 直近ユーザー発話に必ず具体的に反応し、前回と同じ文を繰り返さない。",
	"roleplay_reply と coach_feedback の冒頭1文は、直近ユーザー発話の要点を言い換えてから始める。",
	"相手傾向に合わせて、語調・長さ・判断の進め方を調整する。",
}

var personPriority = map[models.Priority]string{
	models.PriorityPolitics: "見え方・評価・支持者への影響を重視。筋の良さだけでは動かない。",
	models.PriorityLogic:    "正しさと整合性を重視。矛盾のない説明が最優先。",
	models.PriorityRisk:     "責任回避と炎上回避を重視。前例・監査耐性が重要。",
	models.PriorityOutcome:  "成果・進捗を最優先。抽象論より実行案。",
	models.PrioritySpeed:    "意思決定スピード重視。選択肢は絞る。",
	models.PriorityHarmony:  "場の調和と合意を重視。衝突回避と関係維持が重要。",
}

var userPriority = map[models.Priority]string{
	models.PriorityPolitics: "見え方・評価を重視する傾向。",
	models.PriorityLogic:    "正しさと整合性を重視する傾向。論理で押しすぎると相手が引く場面に注意。",
	models.PriorityRisk:     "リスク回避を重視する傾向。慎重すぎて判断が遅れる場面に注意。",
	models.PriorityOutcome:  "成果・スピードを重視する傾向。結論を急いで相手を置き去りにする場面に注意。",
	models.PrioritySpeed:    "意思決定スピードを重視する傾向。拙速になる場面に注意。",
	models.PriorityHarmony:  "場の調和を重視する傾向。自分の意見を抑えすぎる場面に注意。",
}

func pick[T comparable](cond T, match T, yes, no string) string {
	if cond == match {
		return yes
	}
	return no
}

func personGuidance(p models.Person) string {
	a := p.Axes
	tendency := strings.Join([]string{
		personPriority[a.Priority],
		pick(a.Directness, models.Direct, "直接的で明確な言い方を好む。", "婉曲で角の立たない言い方を好む。"),
		pick(a.Verbosity, models.Short, "短文で要点先出し。", "背景も含めた丁寧な説明が有効。"),
		pick(a.Emphasis, models.Emotional, "感情面への配慮を入れる。", "論点と根拠を明確にする。"),
		pick(a.Stance, models.Defensive, "反論を想定し、先回りして根拠を補強する。", "共通目的を先に置くと通りやすい。"),
		pick(a.DecisionSpeed, models.Fast, "判断は早い。結論と選択肢を先に。", "判断は慎重。前提確認を丁寧に。"),
	}, " ")

	lines := []string{"相手名: " + p.Name}
	if p.Role != "" {
		lines = append(lines, "役割: "+p.Role)
	}
	if p.Relationship != "" {
		lines = append(lines, "関係: "+p.Relationship)
	}
	lines = append(lines,
		"相手傾向: "+tendency,
		"出力スタイル要件:",
		"- roleplay_reply: "+pick(a.Verbosity, models.Short, "1〜2文で短く", "2〜4文で背景も含める"),
		"- coach_feedback: "+pick(a.Emphasis, models.Logical, "論点と根拠を明示", "配慮と伝わり方を明示"),
		"- next_options: "+pick(a.Directness, models.Direct, "結論先出しで明確に", "角を立てない相談形で")+" 3案",
	)
	if p.Memo != "" {
		lines = append(lines, "追加メモ: "+p.Memo)
	}
	return strings.Join(lines, "\n")
}

func userGuidance(u *models.UserProfile) string {
	if u == nil {
		return ""
	}
	a := u.Axes
	lines := []string{
		"【ユーザー自身の特性】",
		"ユーザーの名前: " + u.Name,
		"回答内で「ユーザーは」ではなく、名前で呼ぶこと。",
		userPriority[a.Priority],
		pick(a.Directness, models.Direct, "ストレートに言う傾向。角が立つ場面に注意。", "婉曲に言う傾向。意図が伝わらない場面に注意。"),
		pick(a.Verbosity, models.Short, "説明が短い傾向。背景不足で誤解される場面に注意。", "説明が長い傾向。要点がぼやける場面に注意。"),
		pick(a.Emphasis, models.Emotional, "感情配慮を重視する傾向。", "論理・根拠を重視する傾向。感情面のケアが後回しになる場面に注意。"),
		pick(a.Stance, models.Defensive, "自分の意見を主張する傾向。対立を生みやすい場面に注意。", "協調的な傾向。自分の意見を抑えすぎる場面に注意。"),
		pick(a.DecisionSpeed, models.Fast, "判断が早い傾向。拙速になる場面に注意。", "判断が慎重な傾向。タイミングを逃す場面に注意。"),
	}
	if u.Memo != "" {
		lines = append(lines, "本人の補足: "+u.Memo)
	}
	lines = append(lines,
		"",
		"上記を踏まえ、ユーザーの癖や盲点を指摘し、この相手に対してユーザーが特に気をつけるべきポイントを coach_feedback に含めること。",
		"一般的なコミュニケーション論ではなく、「あなたはこういう傾向があるから、この場面ではこう気をつけて」という形で助言すること。",
	)
	return strings.Join(lines, "\n")
}

type promptNote struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type promptSnapshot struct {
	Date          time.Time `json:"date"`
	Goal          string    `json:"goal,omitempty"`
	Scenario      string    `json:"scenario"`
	LastUser      string    `json:"lastUser"`
	LastAssistant string    `json:"lastAssistant"`
	Risk          string    `json:"risk,omitempty"`
}

type promptTurn struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type promptInput struct {
	Mode     models.SparringMode
	Goal     string
	Scenario string
	Person   models.Person
	Profile  *models.UserProfile
	Notes    []promptNote
	Recent   []models.SparringSnapshot
	LastUser string
	History  []models.ConversationTurn
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

func orUnset(s string) string {
	if s == "" {
		return "未設定"
	}
	return s
}

func buildTurnPrompt(in promptInput) string {
	snapshots := make([]promptSnapshot, 0, len(in.Recent))
	for _, s := range in.Recent {
		snapshots = append(snapshots, promptSnapshot{
			Date:          s.CreatedAt,
			Goal:          s.Goal,
			Scenario:      truncateRunes(s.Scenario, 80),
			LastUser:      truncateRunes(s.LastUser, 80),
			LastAssistant: truncateRunes(s.LastAssistant, 80),
			Risk:          s.RiskNote,
		})
	}
	turns := make([]promptTurn, 0, len(in.History))
	for _, t := range in.History {
		turns = append(turns, promptTurn{Role: t.Role, Content: t.Content})
	}
	notes := in.Notes
	if notes == nil {
		notes = []promptNote{}
	}

	lines := []string{
		"あなたはコミュニケーション壁打ちコーチ。",
		"現在モード: " + string(in.Mode),
	}
	lines = append(lines, modeInstructions[in.Mode]...)
	lines = append(lines, commonRules...)
	lines = append(lines,
		"相談ゴール: "+orUnset(in.Goal),
		"状況: "+in.Scenario,
		personGuidance(in.Person),
		userGuidance(in.Profile),
		"参照ノート: "+mustJSON(notes),
		"同一相手の過去壁打ち要約: "+mustJSON(snapshots),
		"直近ユーザー発話: "+in.LastUser,
		"履歴: "+mustJSON(turns),
	)
	return strings.Join(lines, "\n")
}

// attemptPrompt appends the retry and strictness hints from the second
// attempt onwards.
func attemptPrompt(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return base + "\n" + RetryHint + "\n" + StrictHint
}
