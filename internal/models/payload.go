package models

import "time"

type SparringMode string

const (
	ModePreReflect   SparringMode = "PRE_REFLECT"
	ModePreStrategy  SparringMode = "PRE_STRATEGY"
	ModeFacilitation SparringMode = "FACILITATION"
)

func (m SparringMode) Valid() bool {
	return m == ModePreReflect || m == ModePreStrategy || m == ModeFacilitation
}

type GoalProgress string

const (
	ProgressLow  GoalProgress = "low"
	ProgressMid  GoalProgress = "mid"
	ProgressHigh GoalProgress = "high"
)

type Strategy struct {
	Goal       string   `json:"goal"`
	Principles []string `json:"principles"`
	Do         []string `json:"do"`
	Dont       []string `json:"dont"`
	Structure  []string `json:"structure"`
}

type Draft struct {
	Tone       string `json:"tone"`
	Message    string `json:"message"`
	WhyItWorks string `json:"why_it_works"`
	Risks      string `json:"risks"`
}

type ExpectedReaction struct {
	Reaction     string `json:"reaction"`
	HowToRespond string `json:"how_to_respond"`
}

type Postmortem struct {
	WhatHappened string   `json:"what_happened"`
	Hypotheses   []string `json:"hypotheses"`
	NextTimePlan []string `json:"next_time_plan"`
	MicroSkill   []string `json:"micro_skill"`
}

type AdoptedDraft struct {
	Tone      string    `json:"tone"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SparringSummary struct {
	LearnedPoints []string   `json:"learned_points"`
	NextActions   []string   `json:"next_actions"`
	RiskWatch     []string   `json:"risk_watch"`
	GeneratedAt   *time.Time `json:"generatedAt,omitempty"`
}

type SparringState struct {
	Scenario         string             `json:"scenario"`
	Goal             string             `json:"goal,omitempty"`
	Mode             SparringMode       `json:"mode,omitempty"`
	Turns            []ConversationTurn `json:"turns"`
	AnalysisSummary  string             `json:"analysis_summary,omitempty"`
	Recommendations  []string           `json:"recommendations,omitempty"`
	FollowUpQuestion string             `json:"follow_up_question,omitempty"`
	GoalProgress     GoalProgress       `json:"goal_progress,omitempty"`
	NextOptions      []string           `json:"next_options,omitempty"`
	RiskNote         string             `json:"risk_note,omitempty"`
	Summary          *SparringSummary   `json:"summary,omitempty"`
}

type ArtifactPayload struct {
	Strategy          *Strategy          `json:"strategy,omitempty"`
	Drafts            []Draft            `json:"drafts,omitempty"`
	ExpectedReactions []ExpectedReaction `json:"expected_reactions,omitempty"`
	Postmortem        *Postmortem        `json:"postmortem,omitempty"`
	Assumptions       []string           `json:"assumptions,omitempty"`
	AdoptedDraft      *AdoptedDraft      `json:"adopted_draft,omitempty"`
	Sparring          *SparringState     `json:"sparring,omitempty"`
}

// SparringSnapshot is the tail of an earlier sparring session with the same
// person, fed back into prompts as continuity context.
type SparringSnapshot struct {
	SessionID     string    `json:"sessionId"`
	CreatedAt     time.Time `json:"createdAt"`
	Goal          string    `json:"goal,omitempty"`
	Scenario      string    `json:"scenario"`
	LastUser      string    `json:"lastUser"`
	LastAssistant string    `json:"lastAssistant"`
	RiskNote      string    `json:"riskNote,omitempty"`
}
