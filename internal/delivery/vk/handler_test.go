package vk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/application"
	"deepdive/internal/coach"
	"deepdive/internal/sparring"
	"deepdive/internal/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) MessagesSend(p api.Params) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p["message"].(string))
	return len(f.sent), f.err
}

func (f *fakeSender) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newHandler(t *testing.T) (*Handler, *fakeSender, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	rw, err := coach.NewRewriter(nil, 0, nil, nil)
	require.NoError(t, err)
	sender := &fakeSender{}
	h := NewHandler(sender,
		application.NewSparringService(store,
			sparring.NewGenerator(nil, store, sparring.DefaultOptions(), nil, nil),
			sparring.NewSummarizer(nil, nil, nil), nil),
		application.NewSessionService(store, rw),
		nil)
	return h, sender, store
}

func TestHandleBasicCommands(t *testing.T) {
	h, sender, store := newHandler(t)
	ctx := context.Background()

	h.Handle(ctx, 1, 2000000001, "!ping")
	assert.Equal(t, "pong", sender.last(t))

	h.Handle(ctx, 1, 2000000001, "!people")
	assert.Contains(t, sender.last(t), "1. 山田さん")

	h.Handle(ctx, 1, 2000000001, "!note 来週の定例で相談する")
	assert.Equal(t, "メモを保存しました。", sender.last(t))
	notes, err := store.ListNotes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "来週の定例で相談する", notes[0].Body)
	assert.Equal(t, []string{"vk"}, notes[0].Tags)

	h.Handle(ctx, 1, 2000000001, "!unknown")
	assert.Equal(t, helpText, sender.last(t))

	n := sender.count()
	h.Handle(ctx, -5, 2000000001, "!ping")
	h.Handle(ctx, 1, 2000000001, "   ")
	h.Handle(ctx, 1, 2000000001, "雑談です")
	assert.Equal(t, n, sender.count(), "bots, blanks and chatter outside a dialog are ignored")
}

func TestSparringDialog(t *testing.T) {
	h, sender, store := newHandler(t)
	ctx := context.Background()
	const peer = 100

	h.Handle(ctx, 7, peer, "!spar 9 延期の相談")
	assert.Contains(t, sender.last(t), "番号は1〜1")

	h.Handle(ctx, 7, peer, "!spar 1 リリース延期を部長に伝えたい")
	assert.Contains(t, sender.last(t), "山田さんとの壁打ちを始めます")

	h.Handle(ctx, 7, peer, "来週のリリースを2週間延ばしたいです。品質リスクが残っています。")
	reply := sender.last(t)
	assert.Contains(t, reply, "山田さん: ")
	assert.Contains(t, reply, "【次の一手】")

	d, ok := h.active(7, peer)
	require.True(t, ok)
	require.NotEmpty(t, d.SessionID)
	assert.Len(t, d.History, 2)

	h.Handle(ctx, 7, peer, "!mode strategy")
	h.Handle(ctx, 7, peer, "どう切り出すのがよいですか？")
	assert.NotContains(t, sender.last(t), "山田さん: ", "strategy mode has no role-play reply")

	d, _ = h.active(7, peer)
	assert.Len(t, d.History, 4)

	h.Handle(ctx, 7, peer, "!close")
	assert.Contains(t, sender.last(t), "【学び】")

	detail, err := store.GetSessionDetail(ctx, d.SessionID)
	require.NoError(t, err)
	require.NotNil(t, detail.Artifact.Payload.Sparring)
	assert.NotNil(t, detail.Artifact.Payload.Sparring.Summary)

	_, ok = h.active(7, peer)
	assert.False(t, ok)
}

func TestDialogExpiresAndStaysInPeer(t *testing.T) {
	h, sender, _ := newHandler(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	h.Handle(ctx, 7, 100, "!spar 1 評価面談の準備")

	_, ok := h.active(7, 200)
	assert.False(t, ok, "dialog is bound to its peer")

	now = now.Add(dialogTTL + time.Minute)
	n := sender.count()
	h.Handle(ctx, 7, 100, "こんにちは")
	assert.Equal(t, n, sender.count())

	h.Handle(ctx, 7, 100, "!close")
	assert.Equal(t, "進行中の壁打ちはありません。", sender.last(t))
}

func TestSendErrorIsSwallowed(t *testing.T) {
	h, sender, _ := newHandler(t)
	sender.err = errors.New("vk down")
	assert.NotPanics(t, func() { h.Handle(context.Background(), 1, 1, "!ping") })
}
