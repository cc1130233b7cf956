package chatbot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/munchmate-api/app/observability/metrics"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// TextGenerator is the remote text-generation provider.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateContentStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type PreferencesReader interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
}

type HistoryReader interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]types.Restaurant, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Chat(ctx context.Context, userID uuid.UUID, req types.ChatRequest) (*types.ChatResponse, error)
	ChatStream(ctx context.Context, userID uuid.UUID, req types.ChatRequest, onChunk func(string) error) (*types.ChatResponse, error)
	History(ctx context.Context, userID uuid.UUID) (*types.ChatHistory, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger    *slog.Logger
	repo      Repository
	generator TextGenerator
	prefs     PreferencesReader
	history   HistoryReader
}

func NewServiceImpl(repo Repository, generator TextGenerator, prefs PreferencesReader, history HistoryReader, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		generator: generator,
		prefs:     prefs,
		history:   history,
	}
}

type promptContext struct {
	prefs  *types.UserPreferences
	recent []string
}

// loadContext fetches preferences and recent views concurrently. Either may
// fail; the prompt then says "not specified" for that part.
func (s *ServiceImpl) loadContext(ctx context.Context, userID uuid.UUID) promptContext {
	var pc promptContext
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.prefs.GetPreferences(gctx, userID)
		if err != nil {
			s.logger.WarnContext(gctx, "Chat context: preferences unavailable", slog.Any("error", err))
			return nil
		}
		pc.prefs = p
		return nil
	})
	g.Go(func() error {
		recent, err := s.history.History(gctx, userID, maxPromptHistory)
		if err != nil {
			s.logger.WarnContext(gctx, "Chat context: history unavailable", slog.Any("error", err))
			return nil
		}
		names := make([]string, 0, len(recent))
		for _, r := range recent {
			names = append(names, r.Name)
		}
		pc.recent = names
		return nil
	})

	_ = g.Wait()
	return pc
}

func validateChat(req types.ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return types.NewValidationError("message", "message is required")
	}
	return nil
}

func asUpstream(err error) error {
	var upstreamErr *types.UpstreamError
	if errors.As(err, &upstreamErr) {
		return err
	}
	return &types.UpstreamError{Provider: "gemini", Err: err}
}

func (s *ServiceImpl) Chat(ctx context.Context, userID uuid.UUID, req types.ChatRequest) (*types.ChatResponse, error) {
	ctx, span := otel.Tracer("ChatbotService").Start(ctx, "Chat", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if err := validateChat(req); err != nil {
		return nil, err
	}
	metrics.Get().ChatRequestsTotal.Add(ctx, 1)

	pc := s.loadContext(ctx, userID)
	text, err := s.generator.GenerateContent(ctx, buildPrompt(req, pc.prefs, pc.recent))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, asUpstream(err)
	}

	resp := s.persist(ctx, userID, req, pc, text)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// ChatStream calls onChunk for each generated chunk. An onChunk error stops
// generation and nothing is persisted.
func (s *ServiceImpl) ChatStream(ctx context.Context, userID uuid.UUID, req types.ChatRequest, onChunk func(string) error) (*types.ChatResponse, error) {
	ctx, span := otel.Tracer("ChatbotService").Start(ctx, "ChatStream", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if err := validateChat(req); err != nil {
		return nil, err
	}
	metrics.Get().ChatRequestsTotal.Add(ctx, 1)

	pc := s.loadContext(ctx, userID)
	var full strings.Builder
	for chunk, err := range s.generator.GenerateContentStream(ctx, buildPrompt(req, pc.prefs, pc.recent)) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream failed")
			return nil, asUpstream(err)
		}
		full.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			span.SetStatus(codes.Error, "client gone")
			return nil, fmt.Errorf("stream aborted: %w", err)
		}
	}

	resp := s.persist(ctx, userID, req, pc, full.String())
	span.SetAttributes(attribute.Int("response.length", full.Len()))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (s *ServiceImpl) persist(ctx context.Context, userID uuid.UUID, req types.ChatRequest, pc promptContext, text string) *types.ChatResponse {
	resp := &types.ChatResponse{Response: text, CreatedAt: time.Now().UTC()}
	saved, err := s.repo.SaveConversation(ctx, types.ChatConversation{
		UserID:   userID,
		Message:  req.Message,
		Response: text,
		Context: types.ChatContext{
			Location:          req.Location,
			Cuisine:           req.Cuisine,
			Dietary:           req.Dietary,
			RecentRestaurants: pc.recent,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist conversation", slog.Any("error", err))
		return resp
	}
	resp.CreatedAt = saved.CreatedAt
	return resp
}

// History returns the latest conversations grouped by UTC calendar day, newest first.
func (s *ServiceImpl) History(ctx context.Context, userID uuid.UUID) (*types.ChatHistory, error) {
	ctx, span := otel.Tracer("ChatbotService").Start(ctx, "History")
	defer span.End()

	convs, err := s.repo.ListConversations(ctx, userID, types.ChatHistoryLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return &types.ChatHistory{Sessions: groupByDay(convs), Total: len(convs)}, nil
}

func groupByDay(convs []types.ChatConversation) []types.ChatSessionGroup {
	groups := make([]types.ChatSessionGroup, 0)
	for _, c := range convs {
		day := c.CreatedAt.UTC().Format(time.DateOnly)
		if n := len(groups); n > 0 && groups[n-1].Date == day {
			groups[n-1].Conversations = append(groups[n-1].Conversations, c)
			continue
		}
		groups = append(groups, types.ChatSessionGroup{Date: day, Conversations: []types.ChatConversation{c}})
	}
	return groups
}

func (s *ServiceImpl) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ChatbotService").Start(ctx, "ClearHistory")
	defer span.End()
	if err := s.repo.DeleteConversations(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
