package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/munchmate-api/app/db"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	SaveConversation(ctx context.Context, c types.ChatConversation) (*types.ChatConversation, error)
	// ListConversations returns the newest conversations first.
	ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]types.ChatConversation, error)
	DeleteConversations(ctx context.Context, userID uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.DBTX
}

func NewRepository(pgpool database.DBTX, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) SaveConversation(ctx context.Context, c types.ChatConversation) (*types.ChatConversation, error) {
	ctx, span := otel.Tracer("ChatbotRepo").Start(ctx, "SaveConversation", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "chatbot_conversations"),
		attribute.String("db.user.id", c.UserID.String()),
	))
	defer span.End()

	contextJSON, err := json.Marshal(c.Context)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to encode chat context: %w", err)
	}

	query := `
		INSERT INTO chatbot_conversations (user_id, message, response, context)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	out := c
	if err := r.pgpool.QueryRow(ctx, query, c.UserID, c.Message, c.Response, contextJSON).Scan(&out.ID, &out.CreatedAt); err != nil {
		r.logger.ErrorContext(ctx, "Failed to save conversation", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return &out, nil
}

func (r *RepositoryImpl) ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]types.ChatConversation, error) {
	ctx, span := otel.Tracer("ChatbotRepo").Start(ctx, "ListConversations", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "chatbot_conversations"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		SELECT id, user_id, message, response, context, created_at
		FROM chatbot_conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pgpool.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list conversations", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]types.ChatConversation, 0, limit)
	for rows.Next() {
		var c types.ChatConversation
		var raw []byte
		if err := rows.Scan(&c.ID, &c.UserID, &c.Message, &c.Response, &raw, &c.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c.Context); err != nil {
				r.logger.WarnContext(ctx, "Ignoring malformed conversation context",
					slog.String("conversation_id", c.ID.String()), slog.Any("error", err))
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (r *RepositoryImpl) DeleteConversations(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ChatbotRepo").Start(ctx, "DeleteConversations")
	defer span.End()

	if _, err := r.pgpool.Exec(ctx, `DELETE FROM chatbot_conversations WHERE user_id = $1`, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("failed to delete conversations: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

type MemoryRepository struct {
	mu    sync.RWMutex
	convs []types.ChatConversation
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (m *MemoryRepository) SaveConversation(_ context.Context, c types.ChatConversation) (*types.ChatConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = m.now().UTC()
	m.convs = append(m.convs, c)
	return &c, nil
}

func (m *MemoryRepository) ListConversations(_ context.Context, userID uuid.UUID, limit int) ([]types.ChatConversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ChatConversation, 0, limit)
	for i := len(m.convs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.convs[i].UserID == userID {
			out = append(out, m.convs[i])
		}
	}
	return out, nil
}

func (m *MemoryRepository) DeleteConversations(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.convs[:0]
	for _, c := range m.convs {
		if c.UserID != userID {
			kept = append(kept, c)
		}
	}
	m.convs = kept
	return nil
}
