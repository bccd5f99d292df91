package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

var (
	// ErrAccountPending blocks accounts that an admin has not approved yet.
	ErrAccountPending = errors.New("auth: account pending admin approval")
	// ErrRoleMismatch indicates the requested portal role differs from the account role.
	ErrRoleMismatch = errors.New("auth: role mismatch for this account")
)

// AuditPort records login events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenService
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenService, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, audit: audit, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues a bearer token. An empty
// role skips the portal role check.
func (s *Service) Login(ctx context.Context, email, password string, role identity.Role) (Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", slog.String("email", email))
		return Session{}, err
	}
	if !user.IsApproved {
		return Session{}, ErrAccountPending
	}
	if role != "" && role != user.Role {
		return Session{}, ErrRoleMismatch
	}
	token, expiresAt, err := s.tokens.Issue(user.Actor())
	if err != nil {
		return Session{}, err
	}
	if s.audit != nil {
		entry := shared.AuditLog{
			ActorID:  user.ID,
			Action:   "login",
			Entity:   "user",
			EntityID: shared.EntityRef(user.ID),
			Meta:     map[string]any{"role": string(user.Role)},
			At:       time.Now().UTC(),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("audit login", slog.Any("error", err))
		}
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// Me returns the account behind the authenticated actor.
func (s *Service) Me(ctx context.Context, actor identity.Actor) (*User, error) {
	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: me: %w", err)
	}
	return user, nil
}
