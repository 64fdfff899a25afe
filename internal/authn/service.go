// Package authn implements the login flow: password authentication, the
// optional second-factor challenge, and session issuance.
//
// A successful password check on a two-factor account does NOT produce a
// session. It produces a short-lived opaque challenge token; the session is
// only issued once CompleteSecondFactor validates a TOTP or backup code
// against that challenge.
package authn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/dramgate/internal/cache"
	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/dropDatabas3/dramgate/internal/metrics"
	"github.com/dropDatabas3/dramgate/internal/observability/logger"
	"github.com/dropDatabas3/dramgate/internal/security/password"
	tokens "github.com/dropDatabas3/dramgate/internal/security/token"
	"github.com/dropDatabas3/dramgate/internal/session"
	"github.com/dropDatabas3/dramgate/internal/twofactor"
	"go.uber.org/zap"
)

const challengeKeyPrefix = "mfa:challenge:"

// Service errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeExpired   = errors.New("second-factor challenge expired or unknown")
	ErrInternal           = errors.New("authentication backend failed")
)

// AuthResult is the outcome of the first authentication step. Exactly one of
// (SessionToken, ChallengeToken) is set.
type AuthResult struct {
	UserID               string
	RequiresSecondFactor bool
	ChallengeToken       string
	SessionToken         string
	Session              session.Session
}

// Service drives the login flow end to end.
type Service struct {
	users        repository.UserRepository
	second       twofactor.Service
	cache        cache.Client
	sessions     *session.Manager
	sitewide     bool
	challengeTTL time.Duration
}

// Deps contains the login service dependencies.
type Deps struct {
	Users        repository.UserRepository
	Second       twofactor.Service
	Cache        cache.Client
	Sessions     *session.Manager
	Sitewide     bool
	ChallengeTTL time.Duration
}

// NewService creates the login service.
func NewService(d Deps) *Service {
	ttl := d.ChallengeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		users:        d.Users,
		second:       d.Second,
		cache:        d.Cache,
		sessions:     d.Sessions,
		sitewide:     d.Sitewide,
		challengeTTL: ttl,
	}
}

type challengePayload struct {
	UserID string `json:"uid"`
}

// Authenticate verifies identifier+password. With the second factor enabled
// for the account (and sitewide) it returns a challenge token; otherwise it
// issues a session directly. Unknown identifier and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, identifier, currentPassword string) (*AuthResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authn.authenticate"))

	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.LoginAttempts.WithLabelValues("failed").Inc()
			return nil, ErrInvalidCredentials
		}
		log.Error("failed to load user", logger.Err(err))
		return nil, ErrInternal
	}

	if !password.Verify(currentPassword, user.PasswordHash) {
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		log.Warn("password verification failed", logger.UserID(user.ID))
		return nil, ErrInvalidCredentials
	}

	// With the feature off sitewide, enabled credentials stay stored but the
	// login flow skips the prompt entirely.
	if s.sitewide {
		st, err := s.second.Status(ctx, user.ID)
		if err != nil {
			log.Error("failed to load two-factor status", logger.Err(err), logger.UserID(user.ID))
			return nil, ErrInternal
		}
		if st.Enabled {
			tok, err := s.issueChallenge(ctx, user.ID)
			if err != nil {
				log.Error("failed to issue challenge", logger.Err(err), logger.UserID(user.ID))
				return nil, ErrInternal
			}
			metrics.LoginAttempts.WithLabelValues("second_factor_required").Inc()
			log.Info("second factor required", logger.UserID(user.ID))
			return &AuthResult{
				UserID:               user.ID,
				RequiresSecondFactor: true,
				ChallengeToken:       tok,
			}, nil
		}
	}

	return s.issueSession(ctx, user.ID, log)
}

// CompleteSecondFactor validates a TOTP or backup code against an
// outstanding challenge and issues the session. The challenge is consumed
// only on success; a failed code leaves it valid for another try within the
// TTL (a burned backup code, however, stays burned).
func (s *Service) CompleteSecondFactor(ctx context.Context, challengeToken, code, backupCode string) (*AuthResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authn.second_factor"))

	key := challengeKeyPrefix + challengeToken
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrChallengeExpired
		}
		log.Error("failed to load challenge", logger.Err(err))
		return nil, ErrInternal
	}

	var payload challengePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.UserID == "" {
		log.Error("malformed challenge payload", logger.Err(err))
		return nil, ErrChallengeExpired
	}

	if err := s.second.ValidateSecondFactor(ctx, payload.UserID, code, backupCode); err != nil {
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := s.cache.Delete(ctx, key); err != nil {
		log.Warn("failed to consume challenge", logger.Err(err))
	}

	return s.issueSession(ctx, payload.UserID, log)
}

func (s *Service) issueChallenge(ctx context.Context, userID string) (string, error) {
	tok, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(challengePayload{UserID: userID})
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, challengeKeyPrefix+tok, string(payload), s.challengeTTL); err != nil {
		return "", err
	}
	return tok, nil
}

func (s *Service) issueSession(ctx context.Context, userID string, log *zap.Logger) (*AuthResult, error) {
	signed, sess, err := s.sessions.Issue(userID)
	if err != nil {
		log.Error("failed to issue session", logger.Err(err))
		return nil, ErrInternal
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	log.Info("session issued", logger.UserID(userID))
	return &AuthResult{UserID: userID, SessionToken: signed, Session: sess}, nil
}
