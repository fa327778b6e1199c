// Package vk runs sparring sessions over VK community messages.
package vk

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/SevereCloud/vksdk/v2/events"
	longpoll "github.com/SevereCloud/vksdk/v2/longpoll-bot"
	"go.uber.org/zap"

	"deepdive/internal/application"
	"deepdive/internal/auth"
	"deepdive/internal/models"
)

const (
	dialogTTL = 30 * time.Minute

	helpText = `コマンド:
!people 相手一覧
!spar <番号> <状況> 壁打ちを開始
!mode <reflect|strategy|facilitation> モード切替
!note <本文> メモを保存
!close 壁打ちを終了して要約
!ping`
)

var modeAliases = map[string]models.SparringMode{
	"reflect":      models.ModePreReflect,
	"strategy":     models.ModePreStrategy,
	"facilitation": models.ModeFacilitation,
}

// dialog is the sparring state of one VK user in one peer.
type dialog struct {
	PeerID    int
	PersonID  string
	Person    string
	Scenario  string
	Mode      models.SparringMode
	SessionID string
	History   []models.ConversationTurn
	Touched   time.Time
}

type Handler struct {
	sender   Sender
	sparring *application.SparringService
	sessions *application.SessionService
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	dialogs map[int64]*dialog
}

func NewHandler(sender Sender, sp *application.SparringService, sessions *application.SessionService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		sender:   sender,
		sparring: sp,
		sessions: sessions,
		log:      log.Named("vk"),
		now:      time.Now,
		dialogs:  make(map[int64]*dialog),
	}
}

func (h *Handler) send(peerID int, msg string) {
	_, err := h.sender.MessagesSend(api.Params{
		"peer_id":   peerID,
		"random_id": h.now().UnixNano(),
		"message":   msg,
	})
	if err != nil {
		h.log.Warn("send failed", zap.Int("peer_id", peerID), zap.Error(err))
	}
}

// Start subscribes the handler to new messages.
func (h *Handler) Start(lp *longpoll.LongPoll) {
	lp.MessageNew(func(ctx context.Context, obj events.MessageNewObject) {
		m := obj.Message
		h.Handle(ctx, m.FromID, m.PeerID, m.Text)
	})
}

// Handle processes one incoming message. Every VK user gets their own data
// set, keyed by a synthetic e-mail.
func (h *Handler) Handle(ctx context.Context, fromID, peerID int, text string) {
	text = strings.TrimSpace(text)
	if fromID <= 0 || text == "" {
		return
	}
	h.log.Debug("message", zap.Int("peer_id", peerID), zap.Int("from_id", fromID))
	ctx = auth.WithUser(ctx, auth.User{Email: fmt.Sprintf("id%d@vk.com", fromID), Name: "vk" + strconv.Itoa(fromID)})

	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "!ping":
		h.send(peerID, "pong")
	case "!help":
		h.send(peerID, helpText)
	case "!people":
		h.handlePeople(ctx, peerID)
	case "!note":
		h.handleNote(ctx, peerID, arg)
	case "!spar":
		h.handleStart(ctx, fromID, peerID, arg)
	case "!mode":
		h.handleMode(fromID, peerID, arg)
	case "!close":
		h.handleClose(ctx, fromID, peerID)
	default:
		if strings.HasPrefix(text, "!") {
			h.send(peerID, helpText)
			return
		}
		h.handleTurn(ctx, fromID, peerID, text)
	}
}

func (h *Handler) handlePeople(ctx context.Context, peerID int) {
	people, err := h.sessions.ListPeople(ctx)
	if err != nil {
		h.log.Error("list people", zap.Error(err))
		h.send(peerID, "相手一覧を取得できませんでした。")
		return
	}
	if len(people) == 0 {
		h.send(peerID, "登録済みの相手はいません。")
		return
	}
	var b strings.Builder
	for i, p := range people {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Name)
		if p.Role != "" {
			b.WriteString(" (" + p.Role + ")")
		}
		b.WriteString("\n")
	}
	h.send(peerID, strings.TrimRight(b.String(), "\n"))
}

func (h *Handler) handleNote(ctx context.Context, peerID int, body string) {
	if body == "" {
		h.send(peerID, "使い方: !note <本文>")
		return
	}
	if _, err := h.sessions.CreateNote(ctx, body, []string{"vk"}); err != nil {
		h.log.Error("create note", zap.Error(err))
		h.send(peerID, "メモを保存できませんでした。")
		return
	}
	h.send(peerID, "メモを保存しました。")
}

func (h *Handler) handleStart(ctx context.Context, fromID, peerID int, arg string) {
	num, scenario, _ := strings.Cut(arg, " ")
	n, err := strconv.Atoi(num)
	scenario = strings.TrimSpace(scenario)
	if err != nil || scenario == "" {
		h.send(peerID, "使い方: !spar <番号> <状況>")
		return
	}
	people, err := h.sessions.ListPeople(ctx)
	if err != nil {
		h.log.Error("list people", zap.Error(err))
		h.send(peerID, "相手一覧を取得できませんでした。")
		return
	}
	if n < 1 || n > len(people) {
		h.send(peerID, fmt.Sprintf("番号は1〜%dで指定してください。", len(people)))
		return
	}
	p := people[n-1]

	h.mu.Lock()
	h.dialogs[int64(fromID)] = &dialog{
		PeerID:   peerID,
		PersonID: p.ID,
		Person:   p.Name,
		Scenario: scenario,
		Mode:     models.ModeFacilitation,
		Touched:  h.now(),
	}
	h.mu.Unlock()
	h.send(peerID, p.Name+"との壁打ちを始めます。最初の発言を送ってください。")
}

// active returns a copy of the user's dialog in peerID, dropping it when idle.
func (h *Handler) active(fromID, peerID int) (dialog, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.dialogs[int64(fromID)]
	if !ok {
		return dialog{}, false
	}
	if h.now().Sub(d.Touched) > dialogTTL {
		delete(h.dialogs, int64(fromID))
		return dialog{}, false
	}
	if d.PeerID != peerID {
		return dialog{}, false
	}
	out := *d
	out.History = append([]models.ConversationTurn(nil), d.History...)
	return out, true
}

func (h *Handler) save(fromID int, d dialog) {
	d.Touched = h.now()
	h.mu.Lock()
	h.dialogs[int64(fromID)] = &d
	h.mu.Unlock()
}

func (h *Handler) handleMode(fromID, peerID int, arg string) {
	mode, ok := modeAliases[strings.ToLower(arg)]
	if !ok {
		h.send(peerID, "使い方: !mode <reflect|strategy|facilitation>")
		return
	}
	d, ok := h.active(fromID, peerID)
	if !ok {
		h.send(peerID, "進行中の壁打ちはありません。!spar で開始してください。")
		return
	}
	d.Mode = mode
	h.save(fromID, d)
	h.send(peerID, "モードを "+string(mode)+" に切り替えました。")
}

func (h *Handler) handleTurn(ctx context.Context, fromID, peerID int, text string) {
	d, ok := h.active(fromID, peerID)
	if !ok {
		return
	}
	d.History = append(d.History, models.ConversationTurn{Role: models.RoleUser, Content: text})
	out, err := h.sparring.Turn(ctx, application.SparringTurnInput{
		SessionID: d.SessionID,
		PersonID:  d.PersonID,
		Scenario:  d.Scenario,
		Mode:      d.Mode,
		History:   d.History,
	})
	if err != nil {
		h.log.Error("sparring turn", zap.String("session_id", d.SessionID), zap.Error(err))
		h.send(peerID, "応答を生成できませんでした。もう一度送ってください。")
		return
	}
	d.SessionID = out.SessionID
	d.History = append(d.History, models.ConversationTurn{Role: models.RoleAssistant, Content: out.AssistantText()})
	h.save(fromID, d)
	h.send(peerID, formatTurn(d.Person, out))
}

func (h *Handler) handleClose(ctx context.Context, fromID, peerID int) {
	d, ok := h.active(fromID, peerID)
	if !ok {
		h.send(peerID, "進行中の壁打ちはありません。")
		return
	}
	h.mu.Lock()
	delete(h.dialogs, int64(fromID))
	h.mu.Unlock()
	if d.SessionID == "" {
		h.send(peerID, "壁打ちを終了しました。")
		return
	}
	summary, err := h.sparring.Close(ctx, d.SessionID)
	if err != nil {
		h.log.Error("close sparring", zap.String("session_id", d.SessionID), zap.Error(err))
		h.send(peerID, "要約を作成できませんでした。")
		return
	}
	h.send(peerID, formatSummary(summary))
}

func formatTurn(person string, out application.SparringTurnOutput) string {
	var b strings.Builder
	if out.RoleplayReply != "" {
		b.WriteString(person + ": " + out.RoleplayReply + "\n\n")
	}
	b.WriteString("【分析】" + out.AnalysisSummary + "\n")
	if out.CoachFeedback != "" {
		b.WriteString("【コーチ】" + out.CoachFeedback + "\n")
	}
	if out.FollowUpQuestion != "" {
		b.WriteString("【質問】" + out.FollowUpQuestion + "\n")
	}
	if len(out.NextOptions) > 0 {
		b.WriteString("【次の一手】\n")
		for i, o := range out.NextOptions {
			fmt.Fprintf(&b, "%d) %s\n", i+1, o)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSummary(s models.SparringSummary) string {
	var b strings.Builder
	b.WriteString("壁打ちを終了しました。\n")
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("【" + title + "】\n")
		for _, it := range items {
			b.WriteString("・" + it + "\n")
		}
	}
	section("学び", s.LearnedPoints)
	section("次のアクション", s.NextActions)
	section("注意点", s.RiskWatch)
	return strings.TrimRight(b.String(), "\n")
}
