package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"deepdive/internal/application"
	"deepdive/internal/coach"
	"deepdive/internal/models"
)

type noteRequest struct {
	Body string   `json:"body"`
	Tags []string `json:"tags"`
}

type personRequest struct {
	Name         string            `json:"name"`
	Role         string            `json:"role"`
	Relationship string            `json:"relationship"`
	Memo         string            `json:"memo"`
	PresetID     string            `json:"presetId"`
	Axes         *models.StyleAxes `json:"typeAxes"`
}

type profileRequest struct {
	Name string           `json:"name"`
	Memo string           `json:"memo"`
	Axes models.StyleAxes `json:"typeAxes"`
}

type coachRequest struct {
	Kind      string `json:"kind"`
	PersonID  string `json:"personId"`
	InputText string `json:"inputText"`
	Goal      string `json:"goal"`
}

type turnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sparringRequest struct {
	SessionID string        `json:"sessionId"`
	PersonID  string        `json:"personId"`
	Goal      string        `json:"goal"`
	Scenario  string        `json:"scenario"`
	Mode      string        `json:"mode"`
	History   []turnRequest `json:"history"`
}

type rewriteRequest struct {
	Message string `json:"message"`
	Tone    string `json:"tone"`
}

type adoptRequest struct {
	Tone    string `json:"tone"`
	Message string `json:"message"`
}

func (s *Server) listNotes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	notes, err := s.deps.Sessions.ListNotes(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err, "failed to list notes")
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) createNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	note, err := s.deps.Sessions.CreateNote(c.Request.Context(), req.Body, req.Tags)
	if err != nil {
		s.fail(c, err, "failed to create note")
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (s *Server) listPeople(c *gin.Context) {
	people, err := s.deps.Sessions.ListPeople(c.Request.Context())
	if err != nil {
		s.fail(c, err, "failed to list people")
		return
	}
	c.JSON(http.StatusOK, people)
}

func (s *Server) createPerson(c *gin.Context) {
	var req personRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	p, err := s.deps.Sessions.CreatePerson(c.Request.Context(), application.PersonInput{
		Name:         req.Name,
		Role:         req.Role,
		Relationship: req.Relationship,
		Memo:         req.Memo,
		PresetID:     req.PresetID,
		Axes:         req.Axes,
	})
	if err != nil {
		s.fail(c, err, "failed to create person")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Sessions.Presets())
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.deps.Sessions.Profile(c.Request.Context())
	if err != nil {
		s.fail(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (s *Server) putProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	p, err := s.deps.Sessions.UpsertProfile(c.Request.Context(), req.Name, req.Memo, req.Axes)
	if err != nil {
		s.fail(c, err, "failed to save profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (s *Server) coach(c *gin.Context) {
	var req coachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	out, err := s.deps.Coaching.Run(c.Request.Context(), application.CoachInput{
		Kind:      models.SessionKind(req.Kind),
		PersonID:  req.PersonID,
		InputText: req.InputText,
		Goal:      req.Goal,
	})
	if err != nil {
		s.fail(c, err, "failed to run coaching")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) sparringTurn(c *gin.Context) {
	var req sparringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	history := make([]models.ConversationTurn, 0, len(req.History))
	for _, t := range req.History {
		history = append(history, models.ConversationTurn{Role: models.Role(t.Role), Content: t.Content})
	}
	out, err := s.deps.Sparring.Turn(c.Request.Context(), application.SparringTurnInput{
		SessionID: req.SessionID,
		PersonID:  req.PersonID,
		Goal:      req.Goal,
		Scenario:  req.Scenario,
		Mode:      models.SparringMode(req.Mode),
		History:   history,
	})
	if err != nil {
		s.fail(c, err, "failed to generate sparring turn")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) rewrite(c *gin.Context) {
	var req rewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	msg, err := s.deps.Sessions.Rewrite(c.Request.Context(), req.Message, coach.Tone(req.Tone))
	if err != nil {
		s.fail(c, err, "rewrite failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) export(c *gin.Context) {
	ex, err := s.deps.Sessions.Export(c.Request.Context())
	if err != nil {
		s.fail(c, err, "failed to export")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="deep-dive-export-%d.json"`, time.Now().UnixMilli()))
	c.JSON(http.StatusOK, ex)
}

func (s *Server) reset(c *gin.Context) {
	if err := s.deps.Sessions.Reset(c.Request.Context()); err != nil {
		s.fail(c, err, "failed to reset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.deps.Sessions.ListSessions(c.Request.Context())
	if err != nil {
		s.fail(c, err, "failed to list sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) sessionDetail(c *gin.Context) {
	d, err := s.deps.Sessions.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "failed to load session")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) closeSparring(c *gin.Context) {
	summary, err := s.deps.Sparring.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "failed to close sparring session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "summary": summary})
}

func (s *Server) adoptDraft(c *gin.Context) {
	var req adoptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	adopted, err := s.deps.Sessions.AdoptDraft(c.Request.Context(), c.Param("id"), req.Tone, req.Message)
	if err != nil {
		s.fail(c, err, "failed to adopt draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "adoptedDraft": adopted})
}

func (s *Server) saveAdoptedNote(c *gin.Context) {
	note, err := s.deps.Sessions.SaveAdoptedNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "failed to save adopted draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "noteId": note.ID})
}
