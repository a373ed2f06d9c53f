// Package oauth runs the OAuth2 authorization-code flow for calendar
// providers and stores the resulting tokens encrypted at rest.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	sharedCrypto "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/crypto"
)

// ErrNoToken is returned when a user has not completed the authorization
// flow for the provider yet.
var ErrNoToken = errors.New("no stored token for user")

// TokenRepository persists encrypted token blobs per (user, provider).
// Find returns (nil, nil) when no token is stored.
type TokenRepository interface {
	Save(ctx context.Context, userID uuid.UUID, provider string, ciphertext []byte) error
	Find(ctx context.Context, userID uuid.UUID, provider string) ([]byte, error)
}

// Config carries the provider endpoints and client credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// Service manages the authorization flow and token storage for one provider.
// The whole oauth2.Token is serialized and sealed as a single AES-GCM blob,
// so refresh tokens never touch storage in the clear.
type Service struct {
	config    *oauth2.Config
	provider  string
	repo      TokenRepository
	encrypter sharedCrypto.Encrypter
	logger    *slog.Logger
}

// NewService creates a new OAuth service.
func NewService(provider string, cfg Config, repo TokenRepository, encrypter sharedCrypto.Encrypter, logger *slog.Logger) (*Service, error) {
	if provider == "" {
		return nil, errors.New("oauth provider is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.RedirectURL == "" {
		return nil, errors.New("oauth configuration is incomplete")
	}
	if repo == nil || encrypter == nil {
		return nil, errors.New("oauth dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		provider:  provider,
		repo:      repo,
		encrypter: encrypter,
		logger:    logger,
	}, nil
}

// Provider returns the provider key this service authorizes.
func (s *Service) Provider() string { return s.provider }

// AuthURL returns the provider authorization URL. Offline access and the
// consent prompt are requested so the provider issues a refresh token even
// on re-authorization.
func (s *Service) AuthURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token and stores it encrypted.
func (s *Service) Exchange(ctx context.Context, userID uuid.UUID, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := s.storeToken(ctx, userID, token); err != nil {
		return nil, err
	}

	s.logger.Info("stored oauth token",
		slog.String("user_id", userID.String()),
		slog.String("provider", s.provider),
	)
	return token, nil
}

// TokenSource returns an auto-refreshing token source for the user. Tokens
// minted by a refresh are persisted so later processes pick them up.
func (s *Service) TokenSource(ctx context.Context, userID uuid.UUID) (oauth2.TokenSource, error) {
	token, err := s.loadToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &persistingSource{
		ctx:     ctx,
		userID:  userID,
		service: s,
		source:  s.config.TokenSource(ctx, token),
		last:    token.AccessToken,
	}, nil
}

// HasToken reports whether the user completed authorization for this provider.
func (s *Service) HasToken(ctx context.Context, userID uuid.UUID) (bool, error) {
	ciphertext, err := s.repo.Find(ctx, userID, s.provider)
	if err != nil {
		return false, err
	}
	return ciphertext != nil, nil
}

func (s *Service) storeToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error {
	plaintext, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	ciphertext, err := s.encrypter.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	if err := s.repo.Save(ctx, userID, s.provider, ciphertext); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (s *Service) loadToken(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error) {
	ciphertext, err := s.repo.Find(ctx, userID, s.provider)
	if err != nil {
		return nil, err
	}
	if ciphertext == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, s.provider)
	}

	plaintext, err := s.encrypter.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(plaintext, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &token, nil
}

// persistingSource wraps the library token source and writes back any token
// it mints, keeping the stored refresh token current.
type persistingSource struct {
	ctx     context.Context
	userID  uuid.UUID
	service *Service
	source  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != p.last {
		if err := p.service.storeToken(p.ctx, p.userID, token); err != nil {
			return nil, err
		}
		p.last = token.AccessToken
		p.service.logger.Debug("persisted refreshed oauth token",
			slog.String("user_id", p.userID.String()),
			slog.String("provider", p.service.provider),
		)
	}

	return token, nil
}
