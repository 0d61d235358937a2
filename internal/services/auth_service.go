package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"hamyon/internal/amqp"
	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/storage"
)

// Claims is the payload of a session token.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"user"`
	jwt.RegisteredClaims
}

type SignUpInput struct {
	Username    string
	Email       string
	Password1   string
	Password2   string
	PhoneNumber string
	Address     string
}

type ProfileInput struct {
	Username    string
	Email       string
	PhoneNumber string
	Address     string
	AvatarURL   string
}

// AuthService handles accounts and stateless session tokens.
type AuthService struct {
	repo      *storage.Repository
	secret    []byte
	ttl       time.Duration
	cost      int
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewAuthService(repo *storage.Repository, secret string, ttl time.Duration, publisher EventPublisher, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		repo:      repo,
		secret:    []byte(secret),
		ttl:       ttl,
		cost:      bcrypt.DefaultCost,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentAuth),
		now:       time.Now,
	}
}

// TokenTTL is how long issued tokens stay valid.
func (s *AuthService) TokenTTL() time.Duration { return s.ttl }

// SignUp creates the account and returns it with a fresh token.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (core.User, string, error) {
	u := core.User{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Address:     strings.TrimSpace(in.Address),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, "", err
	}
	if err := core.ValidatePassword(in.Password1, in.Password2); err != nil {
		return core.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password1), s.cost)
	if err != nil {
		return core.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	u, err = s.repo.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, "", fmt.Errorf("sign up: %w", err)
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return core.User{}, "", err
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID)

	ev := amqp.NewLedgerEvent(amqp.UserRegistered, u.ID, u.ID)
	ev.Username = u.Username
	ev.Email = u.Email
	publishEvent(ctx, s.publisher, s.logger, ev)

	return u, token, nil
}

// Login checks the credentials. Unknown users and wrong passwords produce
// the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (core.User, string, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, "", core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUserID, u.ID)
		return core.User{}, "", core.ErrInvalidCredentials
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return core.User{}, "", err
	}
	return u, token, nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (core.User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (core.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	if name := strings.TrimSpace(in.Username); name != "" {
		u.Username = name
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		u.Email = strings.ToLower(email)
	}
	u.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	u.Address = strings.TrimSpace(in.Address)
	u.AvatarURL = strings.TrimSpace(in.AvatarURL)
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if err := s.repo.UpdateUserProfile(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// ChangePassword requires the current password. Tokens issued before the
// change stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, password1, password2 string) error {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return core.Invalid("old_password", core.ErrInvalidCredentials)
	}
	if err := core.ValidatePassword(password1, password2); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password1), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password changed", log.FieldUserID, userID)
	return nil
}

// DeleteAccount removes the user after checking the password. Wallets,
// categories, transactions and transfers are removed with it.
func (s *AuthService) DeleteAccount(ctx context.Context, userID int64, password string) error {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.Invalid("password", core.ErrInvalidCredentials)
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.logger.InfoContext(ctx, "Account deleted", log.FieldUserID, userID)

	ev := amqp.NewLedgerEvent(amqp.UserDeleted, userID, userID)
	ev.Username = u.Username
	publishEvent(ctx, s.publisher, s.logger, ev)
	return nil
}

// IssueToken signs an HS256 token for u.
func (s *AuthService) IssueToken(u core.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken verifies signature and expiry. Every failure maps to
// core.ErrUnauthorized.
func (s *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: invalid token", core.ErrUnauthorized)
	}
	return claims, nil
}
