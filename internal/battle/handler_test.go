package battle

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/SlpAus/dragon-duel-backend/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := token.NewSigner("test-secret")
	require.NoError(t, err)

	r := gin.New()
	NewHandler(noCritRegistry(&fakeCommitter{}, nil), signer).Register(r.Group("/api/battles"))
	return r
}

func do(r *gin.Engine, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set(TokenHeader, tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerBattleFlow(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/battles", "", gin.H{"player_name": "Ada", "difficulty": "hard"})
	require.Equal(t, http.StatusCreated, w.Code)
	var started startResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, 18, started.Snapshot.PersonMaxHP)
	path := "/api/battles/" + strconv.FormatInt(started.Snapshot.GameID, 10)

	w = do(r, http.MethodPost, path+"/turn", "", gin.H{"manualSkillID": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, path+"/turn", started.Token, gin.H{"manualSkillID": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code, "ultimate starts on cooldown")

	w = do(r, http.MethodPost, path+"/turn", started.Token, gin.H{"manualSkillID": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Round)
	assert.Len(t, snap.TurnEvents, 2)

	w = do(r, http.MethodPost, path+"/auto", started.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, path, started.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/battles", "", gin.H{"difficulty": "easy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/battles/abc", "x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	signer, _ := token.NewSigner("test-secret")
	tok, _ := signer.Issue(999, "Ada")
	w = do(r, http.MethodGet, "/api/battles/999", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerStartWithoutIDCounter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer, err := token.NewSigner("test-secret")
	require.NoError(t, err)
	ids := &fakeIDs{}
	ids.down.Store(true)

	r := gin.New()
	NewHandler(noCritRegistry(&fakeCommitter{}, ids), signer).Register(r.Group("/api/battles"))

	w := do(r, http.MethodPost, "/api/battles", "", gin.H{"player_name": "Ada"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ids.down.Store(false)
	w = do(r, http.MethodPost, "/api/battles", "", gin.H{"player_name": "Ada"})
	assert.Equal(t, http.StatusCreated, w.Code)
}
