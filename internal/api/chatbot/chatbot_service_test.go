package chatbot

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator records prompts and replays canned output.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	chunks  []string
	err     error
}

func (f *fakeGenerator) record(prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	f.record(prompt)
	if f.err != nil {
		return "", f.err
	}
	return strings.Join(f.chunks, ""), nil
}

func (f *fakeGenerator) GenerateContentStream(_ context.Context, prompt string) iter.Seq2[string, error] {
	f.record(prompt)
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

type fakePrefs struct {
	prefs *types.UserPreferences
	err   error
}

func (f fakePrefs) GetPreferences(context.Context, uuid.UUID) (*types.UserPreferences, error) {
	return f.prefs, f.err
}

type fakeHistory struct {
	recent []types.Restaurant
	err    error
}

func (f fakeHistory) History(context.Context, uuid.UUID, int) ([]types.Restaurant, error) {
	return f.recent, f.err
}

type failingRepository struct{ *MemoryRepository }

func (failingRepository) SaveConversation(context.Context, types.ChatConversation) (*types.ChatConversation, error) {
	return nil, errors.New("insert failed")
}

func newTestService(gen TextGenerator, repo Repository, prefs PreferencesReader, hist HistoryReader) *ServiceImpl {
	return NewServiceImpl(repo, gen, prefs, hist, testLogger())
}

func TestServiceImpl_Chat(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	prefs := types.DefaultPreferences(user)
	prefs.LikedFoods = []string{"ramen", "dumplings"}
	recent := []types.Restaurant{{ID: "a", Name: "Ramen Ya"}}

	t.Run("empty message", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc := newTestService(gen, NewMemoryRepository(), fakePrefs{prefs: prefs}, fakeHistory{})
		_, err := svc.Chat(ctx, user, types.ChatRequest{Message: "   "})
		var validation *types.ValidationError
		require.True(t, errors.As(err, &validation))
		assert.Empty(t, gen.prompts)
	})

	t.Run("prompt carries preferences and history and the exchange is saved", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"Try Ramen Ya."}}
		repo := NewMemoryRepository()
		svc := newTestService(gen, repo, fakePrefs{prefs: prefs}, fakeHistory{recent: recent})

		resp, err := svc.Chat(ctx, user, types.ChatRequest{Message: "noodles?", Location: "Lisbon"})
		require.NoError(t, err)
		assert.Equal(t, "Try Ramen Ya.", resp.Response)

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, "You are MunchMate")
		assert.Contains(t, prompt, "- Location: Lisbon")
		assert.Contains(t, prompt, "- Likes: ramen, dumplings")
		assert.Contains(t, prompt, "- Previously viewed restaurants: Ramen Ya")
		assert.Contains(t, prompt, `User query: "noodles?"`)

		saved, err := repo.ListConversations(ctx, user, 10)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, "noodles?", saved[0].Message)
		assert.Equal(t, []string{"Ramen Ya"}, saved[0].Context.RecentRestaurants)
	})

	t.Run("context failures degrade to not specified", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"ok"}}
		svc := newTestService(gen, NewMemoryRepository(), fakePrefs{err: errors.New("db")}, fakeHistory{err: errors.New("db")})

		_, err := svc.Chat(ctx, user, types.ChatRequest{Message: "hi"})
		require.NoError(t, err)
		assert.Contains(t, gen.lastPrompt(), "- Likes: not specified")
		assert.NotContains(t, gen.lastPrompt(), "Previously viewed")
	})

	t.Run("generator failure is an upstream error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		svc := newTestService(gen, NewMemoryRepository(), fakePrefs{prefs: prefs}, fakeHistory{})

		_, err := svc.Chat(ctx, user, types.ChatRequest{Message: "hi"})
		var upstreamErr *types.UpstreamError
		require.True(t, errors.As(err, &upstreamErr))
		assert.Equal(t, "gemini", upstreamErr.Provider)
	})

	t.Run("persist failure still answers", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"ok"}}
		svc := newTestService(gen, failingRepository{NewMemoryRepository()}, fakePrefs{prefs: prefs}, fakeHistory{})

		resp, err := svc.Chat(ctx, user, types.ChatRequest{Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Response)
	})
}

func TestServiceImpl_ChatStream(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	t.Run("chunks are forwarded and the full text saved", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"Try ", "Ramen ", "Ya."}}
		repo := NewMemoryRepository()
		svc := newTestService(gen, repo, fakePrefs{}, fakeHistory{})

		var got []string
		resp, err := svc.ChatStream(ctx, user, types.ChatRequest{Message: "hi"}, func(c string) error {
			got = append(got, c)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Try ", "Ramen ", "Ya."}, got)
		assert.Equal(t, "Try Ramen Ya.", resp.Response)

		saved, err := repo.ListConversations(ctx, user, 10)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, "Try Ramen Ya.", saved[0].Response)
	})

	t.Run("aborted stream is not saved", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"a", "b"}}
		repo := NewMemoryRepository()
		svc := newTestService(gen, repo, fakePrefs{}, fakeHistory{})

		_, err := svc.ChatStream(ctx, user, types.ChatRequest{Message: "hi"}, func(string) error {
			return errors.New("client gone")
		})
		require.Error(t, err)
		saved, _ := repo.ListConversations(ctx, user, 10)
		assert.Empty(t, saved)
	})

	t.Run("mid stream failure", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"a"}, err: errors.New("reset")}
		svc := newTestService(gen, NewMemoryRepository(), fakePrefs{}, fakeHistory{})

		_, err := svc.ChatStream(ctx, user, types.ChatRequest{Message: "hi"}, func(string) error { return nil })
		var upstreamErr *types.UpstreamError
		require.True(t, errors.As(err, &upstreamErr))
	})
}

func TestServiceImpl_HistoryGroupsByDay(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	repo := NewMemoryRepository()
	clock := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	for _, msg := range []string{"one", "two"} {
		_, err := repo.SaveConversation(ctx, types.ChatConversation{UserID: user, Message: msg})
		require.NoError(t, err)
	}
	clock = clock.Add(2 * time.Hour)
	_, err := repo.SaveConversation(ctx, types.ChatConversation{UserID: user, Message: "three"})
	require.NoError(t, err)

	svc := newTestService(&fakeGenerator{}, repo, fakePrefs{}, fakeHistory{})
	history, err := svc.History(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, 3, history.Total)
	require.Len(t, history.Sessions, 2)
	assert.Equal(t, "2025-06-02", history.Sessions[0].Date)
	assert.Equal(t, "three", history.Sessions[0].Conversations[0].Message)
	assert.Equal(t, "2025-06-01", history.Sessions[1].Date)
	assert.Len(t, history.Sessions[1].Conversations, 2)

	require.NoError(t, svc.ClearHistory(ctx, user))
	history, err = svc.History(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, history.Total)
	assert.Empty(t, history.Sessions)
}

func TestBuildPrompt(t *testing.T) {
	recent := []string{"a", "b", "c", "d", "e", "f"}
	prompt := buildPrompt(types.ChatRequest{Message: "hi", Instruction: "be short"}, nil, recent)

	assert.Contains(t, prompt, "- Previously viewed restaurants: a, b, c, d, e\n")
	assert.Contains(t, prompt, "- Preferred price range: not specified")
	assert.Contains(t, prompt, "Special instruction: be short")
	assert.Contains(t, prompt, "- Cuisine interest: not specified")
}
