package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/battle"
	"github.com/SlpAus/dragon-duel-backend/internal/notify"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/config"
	"github.com/SlpAus/dragon-duel-backend/internal/query"
	"github.com/SlpAus/dragon-duel-backend/internal/ratelimit"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/internal/testutil"
	"github.com/SlpAus/dragon-duel-backend/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *gin.Engine {
	t.Helper()
	_, rdb := testutil.NewRedis(t)
	gw := record.NewGateway(rdb, nil, record.Options{}, nil)
	reg := battle.NewRegistry(gw, gw, nil, nil, battle.Options{}, nil)
	signer, err := token.NewSigner("")
	require.NoError(t, err)

	return NewRouter(config.ServerConfig{Mode: gin.TestMode, Cors: config.CorsConfig{AllowedOrigins: []string{"http://localhost:3000"}}}, Dependencies{
		Battles:     battle.NewHandler(reg, signer),
		Queries:     query.NewHandler(query.NewService(rdb, nil, nil)),
		Broadcaster: notify.NewBroadcaster(),
		Registry:    reg,
		StartLimit:  ratelimit.New(rdb, nil, ratelimit.Options{Scope: "start", Window: time.Minute, Max: 2}, nil),
	}, nil)
}

func TestHealthzReportsRegistry(t *testing.T) {
	r := newServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["active_battles"])
}

func TestRoutesMountBattleAndQueries(t *testing.T) {
	r := newServer(t)

	payload, _ := json.Marshal(gin.H{"player_name": "Ada", "difficulty": "easy"})
	req := httptest.NewRequest(http.MethodPost, "/api/battles", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboards/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBattleStartIsRateLimited(t *testing.T) {
	r := newServer(t)
	payload, _ := json.Marshal(gin.H{"player_name": "Ada"})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/battles", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.4:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestCorsPreflight(t *testing.T) {
	r := newServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/battles", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
