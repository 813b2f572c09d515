package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicops/visitdesk/internal/apperr"
	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/pkg/logging"
)

// Service authenticates callers and issues HMAC-signed JWTs.
type Service struct {
	repo       users.Repository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	logger     *logging.Logger
}

// NewService constructs an auth service.
func NewService(repo users.Repository, secret string, tokenTTL time.Duration, bcryptCost int, logger *logging.Logger) *Service {
	if repo == nil {
		panic("auth: user repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// RegisterRequest carries the fields for account creation.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, string, error) {
	role, err := users.ParseRole(req.Role)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, "", apperr.New(apperr.KindValidation, "name is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, "", apperr.New(apperr.KindValidation, "email is required")
	}
	if len(req.Password) < 6 {
		return nil, "", apperr.New(apperr.KindValidation, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user := &users.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, "", apperr.New(apperr.KindUnauthorized, "invalid email or password")
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.New(apperr.KindUnauthorized, "invalid email or password")
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// IssueToken signs a JWT whose subject is the user id.
func (s *Service) IssueToken(userID uuid.UUID) (string, error) {
	if len(s.secret) == 0 {
		return "", apperr.New(apperr.KindInternal, "auth disabled: no signing secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "sign token", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT and returns the subject user id.
func (s *Service) VerifyToken(tokenString string) (uuid.UUID, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.New(apperr.KindUnauthorized, "invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindUnauthorized, "invalid token subject")
	}
	return userID, nil
}
