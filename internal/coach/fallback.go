package coach

import "deepdive/internal/models"

// FallbackPayload is the templated bundle served when no model output is
// usable. POST sessions also get a postmortem.
func FallbackPayload(kind models.SessionKind, goal string) models.ArtifactPayload {
	if goal == "" {
		goal = "相手に伝わる形で前進させる"
	}
	p := models.ArtifactPayload{
		Strategy: &models.Strategy{
			Goal: goal,
			Principles: []string{
				"結論を先に置く",
				"相手に合わせて情報量を調整する",
				"相手が選びやすい選択肢を出す",
			},
			Do: []string{
				"1文目で目的を明示する",
				"理由は2つまでに絞る",
				"最後に次アクションを確認する",
			},
			Dont:      []string{"背景説明を長くしすぎる", "相手の反応を決めつける"},
			Structure: []string{"目的", "背景(最小)", "提案", "確認したいこと"},
		},
		Drafts: []models.Draft{
			{
				Tone:       "フラット",
				Message:    "相談です。結論から共有すると、A案で進めるのが最適だと考えています。理由は2点で、1) 納期に間に合う 2) 影響範囲が限定的です。懸念があればここで調整したいです。",
				WhyItWorks: "結論先行で判断コストを下げ、相手に修正余地を残せる。",
				Risks:      "反対意見が強い場合は背景不足に見える可能性。",
			},
			{
				Tone:       "ていねい",
				Message:    "お時間ありがとうございます。先に結論だけお伝えすると、今回はA案で進めるのが良いと考えています。理由は2点あります。必要であれば詳細もすぐ共有します。",
				WhyItWorks: "配慮を示しつつ主張が埋もれない。",
				Risks:      "曖昧に見えた場合は次の一手を明確にする必要がある。",
			},
		},
		ExpectedReactions: []models.ExpectedReaction{
			{Reaction: "根拠が弱いと言われる", HowToRespond: "比較軸を1つ追加して、A/Bの差を短く示す。"},
			{Reaction: "すぐ決めたいと言われる", HowToRespond: "選択肢を2つに絞り、推奨を明言する。"},
		},
		Assumptions: []string{"入力情報が短いため、典型パターンを前提に提案しています。"},
	}
	if kind == models.KindPost {
		p.Postmortem = &models.Postmortem{
			WhatHappened: "意図はあったが、伝える順序で誤解が生まれた。",
			Hypotheses: []string{
				"結論が遅く、相手が防衛的になった",
				"相手に合わせた情報量調整が不足した",
			},
			NextTimePlan: []string{
				"冒頭30秒で目的と結論を言う",
				"相手の懸念を先に確認してから提案する",
				"最後に合意事項を1文で再確認する",
			},
			MicroSkill: []string{"ワンセンテンス要約", "確認質問を1つ入れる"},
		}
	}
	return p
}
