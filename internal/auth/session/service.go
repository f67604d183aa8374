package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"photoshare/internal/auth/token"
	"photoshare/internal/identity"
)

// Issued is the result of a login or renewal. RefreshSecret is the raw
// secret for the client; it must reach the client only through the
// HTTP cookie transport and never appear in a response body or log.
type Issued struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshSecret    string
	RefreshExpiresAt time.Time
}

// Service orchestrates login, rotation, and logout against the Store and
// the token Issuer. It is the only component that mutates Store state.
type Service struct {
	cfg    Config
	users  identity.Store
	store  Store
	issuer *token.Issuer
	hasher *token.Hasher
	log    *slog.Logger

	// dummyHash keeps login timing comparable when the user is unknown.
	dummyHash string
}

// NewService wires a Service from its collaborators.
func NewService(cfg Config, users identity.Store, store Store, issuer *token.Issuer, hasher *token.Hasher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:    cfg,
		users:  users,
		store:  store,
		issuer: issuer,
		hasher: hasher,
		log:    log,
	}

	if hash, err := identity.HashPassword("dummy-password-for-timing", identity.DefaultArgon2idParams()); err == nil {
		s.dummyHash = hash
	}

	return s
}

// Login verifies primary credentials and starts a fresh session. Any
// previously valid records of the user are revoked first: one active
// session per user bounds the blast radius of a leaked secret.
func (s *Service) Login(ctx context.Context, loginName, password string, dev Device) (Issued, identity.User, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" || password == "" {
		return Issued{}, identity.User{}, ErrInvalidCredentials
	}

	ua, err := s.users.GetAuthByLoginName(ctx, loginName)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if s.dummyHash != "" {
				_, _ = identity.VerifyPassword(password, s.dummyHash)
			}
			return Issued{}, identity.User{}, ErrInvalidCredentials
		}
		return Issued{}, identity.User{}, err
	}

	ok, err := identity.VerifyPassword(password, ua.PasswordHash)
	if err != nil || !ok {
		return Issued{}, identity.User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.store.RevokeAllForUser(ctx, now, ua.User.ID, ReasonSuperseded); err != nil {
		return Issued{}, identity.User{}, err
	}

	issued, err := s.issueFor(ctx, now, ua.User, dev)
	if err != nil {
		return Issued{}, identity.User{}, err
	}

	s.log.Info("session.login", "user_id", ua.User.ID)
	return issued, ua.User, nil
}

// Renew exchanges a raw refresh secret for a fresh token pair, rotating
// the backing record atomically. Any failure ends the session: the
// caller must not retry with the same secret.
func (s *Service) Renew(ctx context.Context, rawSecret string, dev Device) (Issued, identity.User, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" || len(rawSecret) > 4096 {
		return Issued{}, identity.User{}, ErrSessionExpired
	}

	now := time.Now().UTC()

	newSecret, err := token.NewSecret(s.cfg.RefreshSecretBytes)
	if err != nil {
		return Issued{}, identity.User{}, err
	}

	successor := Record{
		ID:         ulid.Make().String(),
		SecretHash: s.hasher.Hash(newSecret),
		ExpiresAt:  now.Add(s.cfg.RefreshTokenTTL),
		UserAgent:  dev.UserAgent,
		IP:         dev.IP,
		CreatedAt:  now,
	}

	rotated, err := s.store.Rotate(ctx, now, s.hasher.Hash(rawSecret), successor)
	if err != nil {
		if errors.Is(err, ErrRefreshReuse) {
			reuseDetectedTotal.Inc()
			s.log.Warn("session.renew.reuse_detected")
			return Issued{}, identity.User{}, ErrSessionExpired
		}
		if errors.Is(err, ErrInvalidRefresh) {
			return Issued{}, identity.User{}, ErrSessionExpired
		}
		return Issued{}, identity.User{}, err
	}

	user, err := s.users.GetByID(ctx, rotated.UserID)
	if err != nil {
		// Account gone since issuance: end the chain instead of minting
		// tokens for a deleted user.
		if errors.Is(err, identity.ErrNotFound) {
			_ = s.store.Revoke(ctx, now, rotated.SecretHash, ReasonLogout)
			return Issued{}, identity.User{}, ErrSessionExpired
		}
		return Issued{}, identity.User{}, err
	}

	accessToken, accessExp, err := s.issuer.Issue(user.ID, string(user.Role))
	if err != nil {
		return Issued{}, identity.User{}, err
	}

	return Issued{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshSecret:    newSecret,
		RefreshExpiresAt: rotated.ExpiresAt,
	}, user, nil
}

// Logout revokes the record matching the presented secret. Idempotent:
// a missing or already-revoked session is not an error.
func (s *Service) Logout(ctx context.Context, rawSecret string) error {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" {
		return nil
	}
	return s.store.Revoke(ctx, time.Now().UTC(), s.hasher.Hash(rawSecret), ReasonLogout)
}

// RevokeAllForUser signs a user out everywhere.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.RevokeAllForUser(ctx, time.Now().UTC(), userID, ReasonLogout)
}

// SweepExpired removes records past expiry.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.SweepExpired(ctx, time.Now().UTC())
}

// RunSweeper blocks, sweeping expired records on the configured interval
// until the context is cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.log.Error("session.sweep.fail", "err", err)
				continue
			}
			if n > 0 {
				sweptRecordsTotal.Add(float64(n))
				s.log.Info("session.sweep", "removed", n)
			}
		}
	}
}

func (s *Service) issueFor(ctx context.Context, now time.Time, user identity.User, dev Device) (Issued, error) {
	rawSecret, err := token.NewSecret(s.cfg.RefreshSecretBytes)
	if err != nil {
		return Issued{}, err
	}

	rec := Record{
		ID:         ulid.Make().String(),
		UserID:     user.ID,
		SecretHash: s.hasher.Hash(rawSecret),
		ExpiresAt:  now.Add(s.cfg.RefreshTokenTTL),
		UserAgent:  dev.UserAgent,
		IP:         dev.IP,
		CreatedAt:  now,
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.issuer.Issue(user.ID, string(user.Role))
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshSecret:    rawSecret,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}
