package oauth_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/raziel-gershoni/calbrew-sub001/internal/identity/application/oauth"
	sharedCrypto "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/crypto"
)

type inMemoryRepo struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newInMemoryRepo() *inMemoryRepo {
	return &inMemoryRepo{blobs: make(map[string][]byte)}
}

func (r *inMemoryRepo) Save(ctx context.Context, userID uuid.UUID, provider string, ciphertext []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[userID.String()+"/"+provider] = ciphertext
	return nil
}

func (r *inMemoryRepo) Find(ctx context.Context, userID uuid.UUID, provider string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blobs[userID.String()+"/"+provider], nil
}

func newTestEncrypter(t *testing.T) *sharedCrypto.AESEncrypter {
	t.Helper()

	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	encrypter, err := sharedCrypto.NewAESGCMFromBase64Key(key)
	require.NoError(t, err)
	return encrypter
}

func newTestService(t *testing.T, tokenURL string, repo oauth.TokenRepository, encrypter *sharedCrypto.AESEncrypter) *oauth.Service {
	t.Helper()

	service, err := oauth.NewService("google", oauth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "http://auth.example/authorize",
		TokenURL:     tokenURL,
		RedirectURL:  "http://localhost/callback",
		Scopes:       []string{"calendar"},
	}, repo, encrypter, nil)
	require.NoError(t, err)
	return service
}

func decryptToken(t *testing.T, encrypter *sharedCrypto.AESEncrypter, ciphertext []byte) oauth2.Token {
	t.Helper()

	plaintext, err := encrypter.Decrypt(ciphertext)
	require.NoError(t, err)
	var token oauth2.Token
	require.NoError(t, json.Unmarshal(plaintext, &token))
	return token
}

func TestService_Exchange(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token",
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer tokenServer.Close()

	encrypter := newTestEncrypter(t)
	repo := newInMemoryRepo()
	service := newTestService(t, tokenServer.URL, repo, encrypter)

	userID := uuid.New()
	token, err := service.Exchange(context.Background(), userID, "code")
	require.NoError(t, err)
	require.Equal(t, "access-token", token.AccessToken)

	ciphertext, err := repo.Find(context.Background(), userID, "google")
	require.NoError(t, err)
	require.NotNil(t, ciphertext)

	stored := decryptToken(t, encrypter, ciphertext)
	require.Equal(t, "access-token", stored.AccessToken)
	require.Equal(t, "refresh-token", stored.RefreshToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), stored.Expiry, 5*time.Second)

	has, err := service.HasToken(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestService_AuthURL(t *testing.T) {
	service := newTestService(t, "http://token.example", newInMemoryRepo(), newTestEncrypter(t))

	url := service.AuthURL("state-123")
	require.Contains(t, url, "http://auth.example/authorize")
	require.Contains(t, url, "client_id=client-id")
	require.Contains(t, url, "state=state-123")
	require.Contains(t, url, "access_type=offline")
	require.Contains(t, url, "prompt=consent")
}

func TestService_TokenSourcePersistsRefreshedToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "refresh-token", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	encrypter := newTestEncrypter(t)
	repo := newInMemoryRepo()
	service := newTestService(t, tokenServer.URL, repo, encrypter)

	// Seed an expired token so the source must refresh.
	userID := uuid.New()
	plaintext, err := json.Marshal(&oauth2.Token{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	ciphertext, err := encrypter.Encrypt(plaintext)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), userID, "google", ciphertext))

	source, err := service.TokenSource(context.Background(), userID)
	require.NoError(t, err)

	token, err := source.Token()
	require.NoError(t, err)
	require.Equal(t, "fresh-access", token.AccessToken)
	// The library keeps the old refresh token when the response omits one.
	require.Equal(t, "refresh-token", token.RefreshToken)

	blob, err := repo.Find(context.Background(), userID, "google")
	require.NoError(t, err)
	stored := decryptToken(t, encrypter, blob)
	require.Equal(t, "fresh-access", stored.AccessToken)
	require.Equal(t, "refresh-token", stored.RefreshToken)
}

func TestService_TokenSourceWithoutToken(t *testing.T) {
	service := newTestService(t, "http://token.example", newInMemoryRepo(), newTestEncrypter(t))

	_, err := service.TokenSource(context.Background(), uuid.New())
	require.ErrorIs(t, err, oauth.ErrNoToken)
}

func TestNewService_Validation(t *testing.T) {
	encrypter := newTestEncrypter(t)
	repo := newInMemoryRepo()

	_, err := oauth.NewService("", oauth.Config{}, repo, encrypter, nil)
	require.Error(t, err)

	_, err = oauth.NewService("google", oauth.Config{ClientID: "id"}, repo, encrypter, nil)
	require.Error(t, err)

	_, err = oauth.NewService("google", oauth.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURL:      "http://auth.example",
		TokenURL:     "http://token.example",
		RedirectURL:  "http://localhost/callback",
	}, nil, encrypter, nil)
	require.Error(t, err)
}
