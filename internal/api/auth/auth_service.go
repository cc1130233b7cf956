package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/munchmate-api/config"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const (
	ProviderLocal         = "local"
	defaultAccessTokenTTL = time.Hour
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.UserAuth, error)
	Login(ctx context.Context, email, password string) (*types.LoginResponse, error)
	GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.UserAuth, error)
	IssueToken(user types.UserAuth) (*types.LoginResponse, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	jwtCfg config.JWTConfig
	now    func() time.Time
}

func NewServiceImpl(repo Repository, jwtCfg config.JWTConfig, logger *slog.Logger) *ServiceImpl {
	if jwtCfg.AccessTokenTTL <= 0 {
		jwtCfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		jwtCfg: jwtCfg,
		now:    time.Now,
	}
}

func (s *ServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.FirstName == "":
		return nil, types.NewValidationError("first_name", "first name is required")
	case req.LastName == "":
		return nil, types.NewValidationError("last_name", "last name is required")
	case req.Email == "":
		return nil, types.NewValidationError("email", "email is required")
	case req.Password == "":
		return nil, types.NewValidationError("password", "password is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, types.NewValidationError("email", "email is not valid")
	}

	prefs := types.DefaultPreferences(uuid.Nil)
	if len(req.FavoriteCuisines) > 0 {
		prefs.FavoriteCuisines = req.FavoriteCuisines
	}
	if req.PriceRange != "" {
		price := types.NormalizePrice(req.PriceRange)
		if price == "" {
			return nil, types.NewValidationError("price_range", "must be one of $, $$, $$$, $$$$")
		}
		prefs.PreferredPriceRange = price
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, types.NewValidationError("password", "password is too long")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, types.UserAuth{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Provider:     ProviderLocal,
	}, *prefs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "")
	return user, nil
}

func (s *ServiceImpl) Login(ctx context.Context, email, password string) (*types.LoginResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, types.NewValidationError("", "email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Error, "unknown email")
			return nil, fmt.Errorf("invalid email or password: %w", types.ErrUnauthenticated)
		}
		span.RecordError(err)
		return nil, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		span.SetStatus(codes.Error, "bad password")
		return nil, fmt.Errorf("invalid email or password: %w", types.ErrUnauthenticated)
	}

	resp, err := s.IssueToken(*user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// GetOrCreateUserFromProvider resolves an OAuth identity to a user. An
// existing account with the same email is reused.
func (s *ServiceImpl) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetOrCreateUserFromProvider", trace.WithAttributes(
		attribute.String("provider", provider),
	))
	defer span.End()

	if providerUser.UserID == "" || providerUser.Email == "" {
		return nil, types.NewValidationError("provider", "provider did not return an id and email")
	}

	user, err := s.repo.GetUserByProvider(ctx, provider, providerUser.UserID)
	if err == nil {
		span.SetStatus(codes.Ok, "existing provider user")
		return user, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	user, err = s.repo.GetUserByEmail(ctx, providerUser.Email)
	if err == nil {
		span.SetStatus(codes.Ok, "existing email user")
		return user, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	first, last := providerUser.FirstName, providerUser.LastName
	if first == "" && last == "" {
		first, last, _ = strings.Cut(strings.TrimSpace(providerUser.Name), " ")
	}
	providerID := providerUser.UserID
	var avatar *string
	if providerUser.AvatarURL != "" {
		avatar = &providerUser.AvatarURL
	}

	user, err = s.repo.CreateUser(ctx, types.UserAuth{
		FirstName:  first,
		LastName:   last,
		Email:      providerUser.Email,
		Provider:   provider,
		ProviderID: &providerID,
		AvatarURL:  avatar,
	}, *types.DefaultPreferences(uuid.Nil))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	s.logger.InfoContext(ctx, "User created from provider",
		slog.String("provider", provider), slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "")
	return user, nil
}

// IssueToken signs an HS256 access token for user.
func (s *ServiceImpl) IssueToken(user types.UserAuth) (*types.LoginResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.jwtCfg.AccessTokenTTL)
	claims := types.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if s.jwtCfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.jwtCfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return &types.LoginResponse{AccessToken: signed, ExpiresAt: expiresAt, User: user}, nil
}
