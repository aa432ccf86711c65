package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/challenge"
	"ggloop.io/loyalty-engine/internal/features/integrity"
	"ggloop.io/loyalty-engine/internal/features/ledger"
	"ggloop.io/loyalty-engine/internal/features/referral"
	"ggloop.io/loyalty-engine/internal/features/retention"
	"ggloop.io/loyalty-engine/internal/features/reward"
	"ggloop.io/loyalty-engine/internal/features/streak"
)

const testReviewerKey = "sesame"

// encodeReviewerKey строит хеш в том же формате, что проверяет
// verifyArgon2id.
func encodeReviewerKey(key string) string {
	salt := []byte("0123456789abcdef")
	hash := argon2.IDKey([]byte(key), salt, 3, 64*1024, 2, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		64*1024, 3, 2,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func newTestServer(t *testing.T) (*Server, *account.Memory) {
	t.Helper()
	cfg := &config.Config{
		AppEnv:          "test",
		ReviewerKeyHash: encodeReviewerKey(testReviewerKey),
	}
	tunables := config.DefaultTunables()
	accounts := account.NewMemory()
	ledgerSvc := ledger.NewService(ledger.NewMemory(accounts), 3, time.Millisecond, 12)
	referralSvc := referral.NewService(referral.NewMemory(), ledgerSvc, tunables)
	rewardStore := reward.NewMemory()
	srv := NewServer(
		accounts,
		ledgerSvc,
		streak.NewService(accounts, ledgerSvc, tunables),
		referralSvc,
		integrity.NewService(integrity.NewMemory(), accounts, integrity.NewRegistry(), tunables),
		retention.NewService(accounts, rewardStore, tunables),
		reward.NewService(rewardStore, ledgerSvc, referralSvc),
		challenge.NewService(challenge.NewMemory(), accounts, ledgerSvc, tunables),
		cfg,
	)
	return srv, accounts
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any, reviewerKey string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if reviewerKey != "" {
		req.Header.Set(reviewerKeyHeader, reviewerKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateRewardDefaultsAvailability(t *testing.T) {
	srv, accounts := newTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	require.NoError(t, accounts.Create(ctx, "acc", true))
	_, err := accounts.ApplyDelta("acc", 1000)
	require.NoError(t, err)

	// Награда без явных флагов доступности.
	w := doJSON(t, router, http.MethodPost, "/v1/rewards",
		map[string]any{"title": "Скин оружия", "point_cost": 400}, testReviewerKey)
	require.Equal(t, http.StatusCreated, w.Code)

	var created reward.Reward
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.InStock)
	assert.True(t, created.Active)

	// Она сразу доступна к обмену.
	w = doJSON(t, router, http.MethodPost, "/v1/events/redemption",
		map[string]any{"account_id": "acc", "reward_id": created.ID, "request_id": "req-1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	// Явный in_stock=false по-прежнему уважается.
	w = doJSON(t, router, http.MethodPost, "/v1/rewards",
		map[string]any{"title": "Скоро в продаже", "point_cost": 100, "in_stock": false}, testReviewerKey)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.False(t, created.InStock)
}

func TestCreateChallengeDefaultsActive(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	now := time.Now()
	w := doJSON(t, router, http.MethodPost, "/v1/challenges", map[string]any{
		"title":        "Три победы",
		"bonus_points": 200,
		"starts_at":    now.Add(-time.Hour).Format(time.RFC3339),
		"ends_at":      now.Add(time.Hour).Format(time.RFC3339),
	}, testReviewerKey)
	require.Equal(t, http.StatusCreated, w.Code)

	var created challenge.Challenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Active)
	assert.True(t, created.InWindow(now))
}

func TestReviewerAuthRejectsBadKey(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	body := map[string]any{"title": "Скин оружия", "point_cost": 400}
	w := doJSON(t, router, http.MethodPost, "/v1/rewards", body, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/rewards", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
