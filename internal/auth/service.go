package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/volunteermd/internal/db"
	"github.com/david/volunteermd/internal/models"
)

const DefaultCost = 12

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password too weak")
	ErrInvalidToken = errors.New("invalid or expired token")
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	hasLetter    = regexp.MustCompile(`[A-Za-z]`)
	hasDigit     = regexp.MustCompile(`\d`)
)

// ValidEmail applies the loose something@something.something check.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPassword requires eight characters including a letter and a digit.
func ValidPassword(password string) bool {
	return len(password) >= 8 && hasLetter.MatchString(password) && hasDigit.MatchString(password)
}

// ResolveSecret returns configured, or a random secret when it is empty. The
// fallback only lives as long as the process.
func ResolveSecret(configured, name string, logger *zap.Logger) (string, error) {
	if s := strings.TrimSpace(configured); s != "" {
		return s, nil
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate %s fallback secret: %w", name, err)
	}
	if logger != nil {
		logger.Warn(name + " is not set; using ephemeral in-memory fallback secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Claims is what a session token carries.
type Claims struct {
	UserID uuid.UUID
	Email  string
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Sign(user models.User) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) Parse(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	return Claims{UserID: userID, Email: email}, nil
}

type AuthResponse struct {
	Token string
	User  models.User
}

type Service struct {
	store  db.Store
	tokens *Tokens
	// Cost is the bcrypt cost for new password hashes.
	Cost int
}

func NewService(store db.Store, tokens *Tokens) *Service {
	return &Service{store: store, tokens: tokens, Cost: DefaultCost}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

func (s *Service) Register(ctx context.Context, email, password string) (*AuthResponse, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !ValidPassword(password) {
		return nil, ErrWeakPassword
	}

	// check if user exists
	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, string(hash))
	if errors.Is(err, db.ErrDuplicate) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Sign(user)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.tokens.Sign(user)
	if err != nil {
		return nil, err
	}

	// Clear hash before returning
	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

// User loads the account behind a session. db.ErrNotFound means the account
// no longer exists.
func (s *Service) User(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}
