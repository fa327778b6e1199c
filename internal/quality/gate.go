package quality

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinRelevance       = 0.06
	DefaultMaxRepetition      = 0.82
	DefaultMinUserSignalRunes = 8
)

type Thresholds struct {
	MinRelevance  float64
	MaxRepetition float64
	// Shorter user messages carry too little signal; relevance is forced to 1.
	MinUserSignalRunes int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRelevance:       DefaultMinRelevance,
		MaxRepetition:      DefaultMaxRepetition,
		MinUserSignalRunes: DefaultMinUserSignalRunes,
	}
}

type Verdict struct {
	Relevance  float64
	Repetition float64
	Pass       bool
	// Reason is "off_topic", "repetitive" or "" for a passing verdict.
	Reason string
}

type Gate struct {
	t Thresholds
}

func NewGate(t Thresholds) *Gate {
	return &Gate{t: t}
}

// Evaluate scores candidate text against the last user message and the
// previous assistant message.
func (g *Gate) Evaluate(combined, lastUser, previousAssistant string) Verdict {
	relevance := 1.0
	if utf8.RuneCountInString(strings.TrimSpace(lastUser)) >= g.t.MinUserSignalRunes {
		relevance = OverlapRatio(combined, lastUser)
	}
	repetition := 0.0
	if previousAssistant != "" {
		repetition = OverlapRatio(combined, previousAssistant)
	}
	v := Verdict{Relevance: relevance, Repetition: repetition, Pass: true}
	switch {
	case relevance < g.t.MinRelevance:
		v.Pass, v.Reason = false, "off_topic"
	case repetition > g.t.MaxRepetition:
		v.Pass, v.Reason = false, "repetitive"
	}
	return v
}
