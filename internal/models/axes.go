package models

type Priority string

const (
	PriorityPolitics Priority = "politics"
	PriorityLogic    Priority = "logic"
	PriorityRisk     Priority = "risk"
	PriorityOutcome  Priority = "outcome"
	PrioritySpeed    Priority = "speed"
	PriorityHarmony  Priority = "harmony"
)

type Directness string

const (
	Direct   Directness = "direct"
	Indirect Directness = "indirect"
)

type Verbosity string

const (
	Short Verbosity = "short"
	Long  Verbosity = "long"
)

type Emphasis string

const (
	Emotional Emphasis = "emotional"
	Logical   Emphasis = "logical"
)

type Stance string

const (
	Defensive   Stance = "defensive"
	Cooperative Stance = "cooperative"
)

type DecisionSpeed string

const (
	Fast DecisionSpeed = "fast"
	Slow DecisionSpeed = "slow"
)

// StyleAxes describes how a person communicates and decides.
type StyleAxes struct {
	Priority      Priority      `json:"priority" yaml:"priority"`
	Directness    Directness    `json:"directness" yaml:"directness"`
	Verbosity     Verbosity     `json:"verbosity" yaml:"verbosity"`
	Emphasis      Emphasis      `json:"emphasis" yaml:"emphasis"`
	Stance        Stance        `json:"stance" yaml:"stance"`
	DecisionSpeed DecisionSpeed `json:"decisionSpeed" yaml:"decisionSpeed"`
}

// NeutralAxes is used when no person is selected.
var NeutralAxes = StyleAxes{
	Priority:      PriorityLogic,
	Directness:    Direct,
	Verbosity:     Short,
	Emphasis:      Logical,
	Stance:        Cooperative,
	DecisionSpeed: Fast,
}

var priorities = map[Priority]struct{}{
	PriorityPolitics: {}, PriorityLogic: {}, PriorityRisk: {},
	PriorityOutcome: {}, PrioritySpeed: {}, PriorityHarmony: {},
}

func (a StyleAxes) Valid() bool {
	_, ok := priorities[a.Priority]
	return ok &&
		(a.Directness == Direct || a.Directness == Indirect) &&
		(a.Verbosity == Short || a.Verbosity == Long) &&
		(a.Emphasis == Emotional || a.Emphasis == Logical) &&
		(a.Stance == Defensive || a.Stance == Cooperative) &&
		(a.DecisionSpeed == Fast || a.DecisionSpeed == Slow)
}

// Normalize replaces every out-of-set value with the NeutralAxes value.
func (a StyleAxes) Normalize() StyleAxes {
	out := a
	if _, ok := priorities[out.Priority]; !ok {
		out.Priority = NeutralAxes.Priority
	}
	if out.Directness != Direct && out.Directness != Indirect {
		out.Directness = NeutralAxes.Directness
	}
	if out.Verbosity != Short && out.Verbosity != Long {
		out.Verbosity = NeutralAxes.Verbosity
	}
	if out.Emphasis != Emotional && out.Emphasis != Logical {
		out.Emphasis = NeutralAxes.Emphasis
	}
	if out.Stance != Defensive && out.Stance != Cooperative {
		out.Stance = NeutralAxes.Stance
	}
	if out.DecisionSpeed != Fast && out.DecisionSpeed != Slow {
		out.DecisionSpeed = NeutralAxes.DecisionSpeed
	}
	return out
}
