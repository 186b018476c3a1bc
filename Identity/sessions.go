package Identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
)

// Sessions issues and verifies the HS256 tokens of the local backend.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Sessions) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Sessions) Issue(uid string) (string, time.Time, error) {
	issued := s.now()
	expires := issued.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

func (s *Sessions) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	// Expiry is checked against the session clock below rather than the wall clock.
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Login checks an email and password against the users collection.
func Login(ctx context.Context, store Store.DocumentStore, email, password string) (Models.AppUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Models.AppUser{}, ErrBadCredentials
	}
	docs, err := store.Query(ctx, Store.Collection(Models.UsersCollection).Where("email", Store.OpEqual, email).Take(1))
	if err != nil {
		return Models.AppUser{}, fmt.Errorf("look up %s: %w", email, err)
	}
	if len(docs) == 0 {
		return Models.AppUser{}, ErrBadCredentials
	}
	user := Mappers.ToUser(docs[0])
	if user.PasswordHash == "" {
		return Models.AppUser{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Models.AppUser{}, ErrBadCredentials
	}
	return user, nil
}

// EnsureUser creates a local account with a hashed password unless one with
// the same uid already exists.
func EnsureUser(ctx context.Context, store Store.DocumentStore, user Models.AppUser, password string) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	fields := Mappers.UserFields(user)
	fields["passwordHash"] = string(hash)

	err = store.CreateWithID(ctx, Models.UserPath(user.UID), fields)
	if errors.Is(err, Store.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create user %s: %w", user.UID, err)
	}
	return true, nil
}
