package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/docuchat/docuchat/internal/ai"
	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/index"
	"github.com/docuchat/docuchat/internal/project"
)

const (
	urlReachable   = "https://docs.example.com/alpha"
	urlUnreachable = "https://down.example.com/beta"
)

type mapFetcher struct {
	pages map[string]string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) (string, error) {
	text, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("fetch %s: connection refused", url)
	}
	return text, nil
}

// keywordEmbedder maps text onto keyword-count dimensions so retrieval is
// deterministic in tests.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	keywords := []string{"alpha", "beta", "gamma"}
	out := make([][]float32, len(inputs))
	for i, text := range inputs {
		vec := make([]float32, len(keywords)+1)
		for d, kw := range keywords {
			vec[d] = float32(strings.Count(strings.ToLower(text), kw))
		}
		vec[len(keywords)] = 1
		out[i] = vec
	}
	return out, nil
}

type scriptedProvider struct {
	mu       sync.Mutex
	answer   string
	failures int // fail this many calls before succeeding
	calls    int
	lastMsgs []ai.Message
}

func (p *scriptedProvider) Chat(_ context.Context, msgs []ai.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastMsgs = append([]ai.Message(nil), msgs...)
	if p.calls <= p.failures {
		return "", fmt.Errorf("%w: scripted failure", common.ErrProvider)
	}
	return p.answer, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	db       *gorm.DB
	projects *project.Service
	prepo    *project.Repo
	chats    *chat.Service
	cache    *index.Cache
	provider *scriptedProvider
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&project.Project{}, &chat.Chat{}, &chat.Message{}))

	prepo := project.NewRepo(db)
	psvc := project.NewService(prepo)
	csvc := chat.NewService(chat.NewRepo(db), prepo)

	fetcher := &mapFetcher{pages: map[string]string{
		urlReachable: "alpha is documented here. alpha settings live in the config file.",
	}}
	embedder := keywordEmbedder{}

	dir := t.TempDir()
	builder := index.NewBuilder(fetcher, embedder, prepo, dir, 1200, 200)
	cache := index.NewCache(4, dir, prepo, builder)
	builder.OnSwap(cache.Invalidate)

	provider := &scriptedProvider{answer: "Alpha settings live in the config file."}

	orch := NewOrchestrator(csvc, NewRetriever(cache, embedder, 3), NewGenerator(provider), 20)
	orch.SetRetryWait(time.Millisecond)

	return &harness{
		db:       db,
		projects: psvc,
		prepo:    prepo,
		chats:    csvc,
		cache:    cache,
		provider: provider,
		orch:     orch,
	}
}

func (h *harness) newProjectAndChat(t *testing.T) (*project.Project, *chat.Chat) {
	t.Helper()
	ctx := context.Background()

	p, err := h.projects.Create(ctx, "Docs", "", []string{urlReachable, urlUnreachable})
	require.NoError(t, err)

	c, err := h.chats.CreateChat(ctx, p.ID, "first chat")
	require.NoError(t, err)
	return p, c
}

func TestQuery_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, c := h.newProjectAndChat(t)

	res, err := h.orch.Query(ctx, c.ID, "where do alpha settings live?")
	require.NoError(t, err)
	require.Equal(t, h.provider.answer, res.Answer)
	require.NotEmpty(t, res.Sources)
	require.Contains(t, res.Sources, urlReachable)
	require.NotContains(t, res.Sources, urlUnreachable)
	require.NotEmpty(t, res.MessageID)

	// the index was built lazily from the reachable URL only
	got, err := h.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, project.StateReady, got.BuildState)
	require.Equal(t, 1, h.cache.Len())

	msgs, err := h.chats.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, chat.RoleUser, msgs[0].Role)
	require.Equal(t, chat.RoleAssistant, msgs[1].Role)
	require.Equal(t, res.MessageID, msgs[1].ID)
	require.Equal(t, res.Sources, msgs[1].Sources)
}

func TestQuery_UnknownChatWritesNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Query(context.Background(), "no-such-chat", "hello?")
	require.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)

	var n int64
	require.NoError(t, h.db.Model(&chat.Message{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestQuery_BlankQuestion(t *testing.T) {
	h := newHarness(t)
	_, c := h.newProjectAndChat(t)

	_, err := h.orch.Query(context.Background(), c.ID, "   ")
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestQuery_ProviderFailureRetriedOnce(t *testing.T) {
	h := newHarness(t)
	_, c := h.newProjectAndChat(t)
	h.provider.failures = 1

	res, err := h.orch.Query(context.Background(), c.ID, "alpha?")
	require.NoError(t, err)
	require.Equal(t, h.provider.answer, res.Answer)
	require.Equal(t, 2, h.provider.callCount())
}

func TestQuery_ExhaustedRetriesBecomeAssistantMessage(t *testing.T) {
	h := newHarness(t)
	_, c := h.newProjectAndChat(t)
	h.provider.failures = 10

	res, err := h.orch.Query(context.Background(), c.ID, "alpha?")
	require.NoError(t, err, "pipeline failure must not fail the query call")
	require.Empty(t, res.Sources)
	require.Contains(t, res.Answer, "Sorry")
	require.Equal(t, 2, h.provider.callCount(), "exactly one retry")

	msgs, err := h.chats.ListMessages(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, chat.RoleAssistant, msgs[1].Role)
	require.Equal(t, res.Answer, msgs[1].Content)
	require.Empty(t, msgs[1].Sources)
}

func TestQuery_IndexUnavailableBecomesAssistantMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, c := h.newProjectAndChat(t)

	// a build already claimed by a worker: state building, no artifact yet
	require.NoError(t, h.prepo.UpdateBuildState(ctx, p.ID, project.StateBuilding))

	res, err := h.orch.Query(ctx, c.ID, "alpha?")
	require.NoError(t, err)
	require.Empty(t, res.Sources)
	require.Contains(t, res.Answer, "hasn't finished building")
	require.Zero(t, h.provider.callCount())
}

func TestQuery_ContextAssembledForProvider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.newProjectAndChat(t)

	// pre-existing turns become bounded history
	_, err := h.chats.AppendMessage(ctx, c.ID, chat.RoleUser, "earlier question", nil)
	require.NoError(t, err)
	_, err = h.chats.AppendMessage(ctx, c.ID, chat.RoleAssistant, "earlier answer", nil)
	require.NoError(t, err)

	_, err = h.orch.Query(ctx, c.ID, "where do alpha settings live?")
	require.NoError(t, err)

	msgs := h.provider.lastMsgs
	require.GreaterOrEqual(t, len(msgs), 4)
	require.Equal(t, "system", msgs[0].Role)
	require.Contains(t, msgs[0].Content, "==DOCUMENT 1==")
	require.Contains(t, msgs[0].Content, urlReachable)
	require.Equal(t, "earlier question", msgs[1].Content)
	require.Equal(t, "earlier answer", msgs[2].Content)
	require.Equal(t, "where do alpha settings live?", msgs[len(msgs)-1].Content)
}
