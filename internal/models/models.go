package models

import "time"

type SessionKind string

const (
	KindPre  SessionKind = "PRE"
	KindPost SessionKind = "POST"
)

type ArtifactType string

const (
	StrategyBundle   ArtifactType = "STRATEGY_BUNDLE"
	PostmortemBundle ArtifactType = "POSTMORTEM_BUNDLE"
)

// ArtifactTypeFor maps a session kind to the artifact it produces.
func ArtifactTypeFor(kind SessionKind) ArtifactType {
	if kind == KindPost {
		return PostmortemBundle
	}
	return StrategyBundle
}

type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

type Person struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Role         string    `json:"role,omitempty"`
	Relationship string    `json:"relationship,omitempty"`
	Axes         StyleAxes `json:"typeAxes"`
	Memo         string    `json:"memo,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Label is the name with the role in full-width brackets when known.
func (p Person) Label() string {
	if p.Role == "" {
		return p.Name
	}
	return p.Name + "（" + p.Role + "）"
}

type UserProfile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Axes      StyleAxes `json:"typeAxes"`
	Memo      string    `json:"memo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CoachingSession struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	PersonID       string      `json:"personId"`
	Kind           SessionKind `json:"kind"`
	Goal           string      `json:"goal,omitempty"`
	InputText      string      `json:"inputText"`
	CreatedAt      time.Time   `json:"createdAt"`
	ArtifactID     string      `json:"artifactId,omitempty"`
	ContextNoteIDs []string    `json:"contextNoteIds"`
}

type Artifact struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Type      ArtifactType    `json:"type"`
	Payload   ArtifactPayload `json:"payload"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// LastContent returns the most recent turn content for role, or "".
func LastContent(turns []ConversationTurn, role Role) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == role {
			return turns[i].Content
		}
	}
	return ""
}
