package quality

import (
	"strings"
	"unicode/utf8"

	"deepdive/internal/models"
)

const (
	MaxShortOptionRunes = 48
	MinLongOptionRunes  = 24
	MinFitRatio         = 0.5
)

var (
	softenerMarkers     = []string{"でしょうか", "いただける", "もし", "念のため", "差し支えなければ"}
	decisivenessMarkers = []string{"結論", "先に", "明確", "判断"}
	logicalMarkers      = []string{"理由", "根拠", "事実", "前提", "影響", "比較", "選択肢"}
	emotionalMarkers    = []string{"不安", "安心", "配慮", "気持ち", "納得", "温度感"}
	fastDecisionMarkers = []string{"結論", "優先", "どちら", "決める", "先に"}
	slowDecisionMarkers = []string{"前提", "確認", "追加情報", "段階", "整理"}
)

// FitInput is the part of a candidate the person-fit checks look at.
type FitInput struct {
	Options  []string
	Combined string
}

type FitVerdict struct {
	Matched int
	Total   int
	Pass    bool
	Failed  []string
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func averageRunes(items []string) float64 {
	if len(items) == 0 {
		return 0
	}
	total := 0
	for _, it := range items {
		total += utf8.RuneCountInString(it)
	}
	return float64(total) / float64(len(items))
}

// EvaluatePersonFit runs four keyword checks (verbosity, directness,
// emphasis, decision speed) and passes when at least half succeed.
func EvaluatePersonFit(in FitInput, axes models.StyleAxes) FitVerdict {
	var v FitVerdict
	check := func(name string, ok bool) {
		v.Total++
		if ok {
			v.Matched++
			return
		}
		v.Failed = append(v.Failed, name)
	}

	avg := averageRunes(in.Options)
	if axes.Verbosity == models.Short {
		check("verbosity", avg <= MaxShortOptionRunes)
	} else {
		check("verbosity", avg >= MinLongOptionRunes)
	}

	softened := containsAny(in.Combined, softenerMarkers)
	if axes.Directness == models.Indirect {
		check("directness", softened)
	} else {
		check("directness", !softened || containsAny(in.Combined, decisivenessMarkers))
	}

	if axes.Emphasis == models.Logical {
		check("emphasis", containsAny(in.Combined, logicalMarkers))
	} else {
		check("emphasis", containsAny(in.Combined, emotionalMarkers))
	}

	if axes.DecisionSpeed == models.Fast {
		check("decision_speed", containsAny(in.Combined, fastDecisionMarkers))
	} else {
		check("decision_speed", containsAny(in.Combined, slowDecisionMarkers))
	}

	v.Pass = float64(v.Matched)/float64(v.Total) >= MinFitRatio
	return v
}
