// Package accounts handles registration, login, and token verification.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lampstack/versekeeper/internal/app/domain/rank"
	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/pkg/logger"
)

var (
	// ErrCredentialsTaken is returned when the email or username is in use.
	ErrCredentialsTaken = errors.New("email or username already registered")
	// ErrInvalidCredentials is returned on a failed login or a bad token.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 72 * time.Hour

// Claims carries the authenticated user identity inside a token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service manages user accounts and bearer tokens.
type Service struct {
	users    storage.UserStore
	secret   []byte
	tokenTTL time.Duration
	log      *logger.Logger
}

// New constructs an accounts service signing tokens with secret.
func New(users storage.UserStore, secret []byte, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{
		users:    users,
		secret:   secret,
		tokenTTL: DefaultTokenTTL,
		log:      log,
	}
}

// Register creates an account and returns the user with a signed token. New
// users start at the first tier with an empty counter.
func (s *Service) Register(ctx context.Context, username, email, password string) (user.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if !usernameRe.MatchString(username) {
		return user.User{}, "", fmt.Errorf("username must be 3-30 characters of letters, digits, or underscores")
	}
	if !emailRe.MatchString(email) {
		return user.User{}, "", fmt.Errorf("email is not valid")
	}
	if len(password) < 8 {
		return user.User{}, "", fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CurrentRank:  rank.Initial().Level,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, "", ErrCredentialsTaken
		}
		return user.User{}, "", err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return user.User{}, "", err
	}
	s.log.WithField("user_id", u.ID).WithField("username", u.Username).Info("user registered")
	return u, token, nil
}

// Login verifies the password and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", ErrInvalidCredentials
		}
		return user.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return user.User{}, "", err
	}
	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// VerifyToken validates a bearer token and returns the user ID it names.
func (s *Service) VerifyToken(token string) (int64, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidCredentials
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

func (s *Service) issueToken(u user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
