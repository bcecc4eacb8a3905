package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/repository"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Claims carries the identity extracted from an access token
type Claims struct {
	UserID string
	Email  string
	Role   domain.UserRole
}

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BcryptCost         int

	// StartingPoints is the balance granted to new accounts
	StartingPoints int

	// RegenInterval schedules the first regeneration for new accounts
	RegenInterval time.Duration
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Signup registers a new user with the starting balance
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error)

	// Login authenticates a user
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)

	// Refresh exchanges a refresh token for a new token pair
	Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponse, error)

	// ValidateToken validates an access token and returns its claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, id string) (*dto.UserResponse, error)
}

// authService implements AuthService
type authService struct {
	userRepo repository.UserRepository
	config   *AuthServiceConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository, config *AuthServiceConfig) AuthService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.AccessTokenExpiry == 0 {
		config.AccessTokenExpiry = 15 * time.Minute
	}
	if config.RefreshTokenExpiry == 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	if config.StartingPoints == 0 {
		config.StartingPoints = 100
	}
	if config.RegenInterval == 0 {
		config.RegenInterval = 24 * time.Hour
	}
	return &authService{
		userRepo: userRepo,
		config:   config,
	}
}

// Signup registers a new user with the starting balance
func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.signup")
	defer span.End()

	span.SetAttributes(attribute.String("email", req.Email))

	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if exists {
		span.SetStatus(codes.Error, "email taken")
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now()
	firstRegen := now.Add(s.config.RegenInterval)
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Points:       s.config.StartingPoints,
		Role:         domain.RoleUser,
		Tier:         "free",
		IsActive:     true,
		NextRegenAt:  &firstRegen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := s.tokenResponse(user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.login")
	defer span.End()

	span.SetAttributes(attribute.String("email", req.Email))

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			span.SetStatus(codes.Error, "invalid credentials")
			return nil, ErrInvalidCredentials
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !user.IsActive {
		span.SetStatus(codes.Error, "user inactive")
		return nil, domain.ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := s.tokenResponse(user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Refresh exchanges a refresh token for a new token pair
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.refresh")
	defer span.End()

	claims, err := s.parseToken(refreshToken, "refresh")
	if err != nil {
		span.SetStatus(codes.Error, "invalid refresh token")
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !user.IsActive {
		span.SetStatus(codes.Error, "user inactive")
		return nil, domain.ErrUserInactive
	}

	resp, err := s.tokenResponse(user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// ValidateToken validates an access token and returns its claims
func (s *authService) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	_, span := telemetry.StartSpan(ctx, "service.auth.validate_token")
	defer span.End()

	claims, err := s.parseToken(token, "access")
	if err != nil {
		span.SetStatus(codes.Error, "invalid token")
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", claims.UserID))
	span.SetStatus(codes.Ok, "")
	return claims, nil
}

// GetUser retrieves a user by ID
func (s *authService) GetUser(ctx context.Context, id string) (*dto.UserResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.get_user")
	defer span.End()

	if id == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return s.toUserResponse(user), nil
}

func (s *authService) tokenResponse(user *domain.User) (*dto.AuthResponse, error) {
	accessToken, err := s.signToken(user, "access", s.config.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.signToken(user, "refresh", s.config.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		User:         s.toUserResponse(user),
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
	}, nil
}

func (s *authService) signToken(user *domain.User, tokenType string, expiry time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     user.ID,
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"typ":     tokenType,
		"exp":     time.Now().Add(expiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *authService) parseToken(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &Claims{
		UserID: userID,
		Email:  email,
		Role:   domain.UserRole(role),
	}, nil
}

func (s *authService) toUserResponse(user *domain.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Points:        user.Points,
		Role:          string(user.Role),
		Tier:          user.Tier,
		TotalSessions: user.TotalSessions,
		NextRegenAt:   user.NextRegenAt,
		CreatedAt:     user.CreatedAt,
	}
}
