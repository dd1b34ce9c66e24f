// Package auth provides email/password accounts and signed session tokens
// stored through any document gateway.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/logger"
	"github.com/theory-cloud/docquery/pkg/query"
)

const (
	// UsersCollection holds one document per account
	UsersCollection = "users"

	// RevokedTokensCollection holds logged out token ids until they expire
	RevokedTokensCollection = "revoked_tokens"

	// DefaultRole is assigned when signup names no role and reported for unknown users
	DefaultRole = "user"

	// DefaultTokenTTL is the lifetime of an issued token
	DefaultTokenTTL = 24 * time.Hour

	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6
)

// User is the public view of an account
type User struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// Claims are the token claims; the subject is the user id
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Options configures a Service
type Options struct {
	Now        func() time.Time
	Logger     *slog.Logger
	Issuer     string
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
}

// Service signs users up, logs them in and checks their tokens
type Service struct {
	gateway core.Gateway
	now     func() time.Time
	logger  *slog.Logger
	issuer  string
	secret  []byte
	ttl     time.Duration
	cost    int
}

// NewService creates a service. A secret is required to sign tokens.
func NewService(gateway core.Gateway, opts Options) (*Service, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%w: token secret is required", errors.ErrInvalidArguments)
	}

	s := &Service{
		gateway: gateway,
		now:     opts.Now,
		logger:  opts.Logger,
		issuer:  opts.Issuer,
		secret:  opts.Secret,
		ttl:     opts.TokenTTL,
		cost:    opts.BcryptCost,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.issuer == "" {
		s.issuer = "docquery"
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTokenTTL
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	return s, nil
}

// Signup creates an account. An email that is already registered yields ErrEmailTaken.
func (s *Service) Signup(ctx context.Context, email, password, role string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is malformed", errors.ErrInvalidArguments)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must have at least %d characters", errors.ErrInvalidArguments, MinPasswordLength)
	}
	if role == "" {
		role = DefaultRole
	}

	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	createdAt := s.now().UTC()
	b, err := s.users().Insert(ctx, map[string]any{
		"email":        email,
		"role":         role,
		"passwordHash": string(hash),
		"createdAt":    createdAt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("user", b.LastWritten()), slog.String("role", role))
	return &User{ID: b.LastWritten(), Email: email, Role: role, CreatedAt: createdAt}, nil
}

// Login checks the password and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	doc, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	if doc == nil {
		return "", nil, errors.ErrInvalidCredentials
	}

	hash, _ := doc["passwordHash"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", nil, errors.ErrInvalidCredentials
	}

	user := userFromDocument(doc)
	token, err := s.issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// FetchUserRole returns the stored role, or DefaultRole when the user or role is missing
func (s *Service) FetchUserRole(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return DefaultRole, nil
	}
	doc, err := query.NewDocument(s.gateway, UsersCollection, uid).First(ctx)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return DefaultRole, nil
	}
	if role, _ := doc["role"].(string); role != "" {
		return role, nil
	}
	return DefaultRole, nil
}

// Verify checks the signature, expiry and revocation of a token
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidCredentials, err)
	}

	revoked, err := query.New(s.gateway, RevokedTokensCollection).
		Where("tokenId", claims.ID).
		First(ctx)
	if err != nil {
		return nil, err
	}
	if revoked != nil {
		return nil, errors.ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes a valid token. The revocation record links back to its user.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return err
	}

	b, err := query.New(s.gateway, RevokedTokensCollection).
		Insert(ctx, map[string]any{
			"tokenId":   claims.ID,
			"userId":    claims.Subject,
			"expiresAt": claims.ExpiresAt.Time.UTC(),
		})
	if err != nil {
		return err
	}

	// Link only to an account that still exists; logout never creates users.
	user, err := query.NewDocument(s.gateway, UsersCollection, claims.Subject).First(ctx)
	if err != nil && !errors.IsPrecondition(err) {
		return err
	}
	if user != nil {
		link := map[string]any{
			query.RefFieldName(UsersCollection): core.Reference{Collection: UsersCollection, ID: user.ID()},
		}
		if _, err := query.NewDocument(s.gateway, RevokedTokensCollection, b.LastWritten()).Update(ctx, link); err != nil {
			return err
		}
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user", claims.Subject))
	return nil
}

func (s *Service) issue(user *User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) users() *query.Builder {
	return query.New(s.gateway, UsersCollection)
}

func (s *Service) findByEmail(ctx context.Context, email string) (core.Document, error) {
	return s.users().Where("email", email).Limit(1).First(ctx)
}

func userFromDocument(doc core.Document) *User {
	user := &User{ID: doc.ID()}
	user.Email, _ = doc["email"].(string)
	user.Role, _ = doc["role"].(string)
	if user.Role == "" {
		user.Role = DefaultRole
	}
	switch created := doc["createdAt"].(type) {
	case time.Time:
		user.CreatedAt = created
	case string:
		// JSON backed stores hand timestamps back as RFC 3339 text
		user.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	}
	return user
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAuthError reports whether err is a credential or revocation failure
func IsAuthError(err error) bool {
	return stderrors.Is(err, errors.ErrInvalidCredentials) || stderrors.Is(err, errors.ErrTokenRevoked)
}
