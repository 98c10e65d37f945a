package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/repository"
	"dilemma_webapp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, authEnabled bool) (*gin.Engine, *Handler) {
	t.Helper()
	store := repository.NewMemoryStore()
	game := service.NewGameService(store, service.GameOptions{MaxRounds: 2})
	auth := service.NewAuthService(service.AuthConfig{
		Enabled:  authEnabled,
		Secret:   "test-secret",
		Issuer:   "dilemma",
		Audience: "dilemma-clients",
		TTL:      time.Hour,
		Clients:  map[string]string{"client-001": "s3cret"},
	}, service.NewAuditService(store))

	h := NewHandler(game, auth, "test")
	r := gin.New()
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
	r.POST("/api/auth/token", h.Token)
	g := r.Group("/api/game")
	g.POST("/start", h.StartGame)
	g.POST("/choice", h.SubmitChoice)
	g.GET("/:sessionId", h.GetGameInfo)
	g.GET("/:sessionId/round/:roundNumber", h.GetRoundInfo)
	g.GET("/:sessionId/history", h.GetHistory)
	g.POST("/:sessionId/close", h.CloseSession)
	return r, h
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func startPair(t *testing.T, r http.Handler) (sessionID, p1, p2 string) {
	t.Helper()
	p1, p2 = uuid.NewString(), uuid.NewString()

	w := doJSON(r, http.MethodPost, "/api/game/start", StartGameRequest{PlayerID: p1, PlayerName: "Alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[service.JoinResult](t, w)
	assert.Equal(t, domain.SessionWaiting, first.Status)
	assert.Equal(t, 1, first.Slot)

	w = doJSON(r, http.MethodPost, "/api/game/start", StartGameRequest{PlayerID: p2, PlayerName: "Bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[service.JoinResult](t, w)
	assert.Equal(t, domain.SessionActive, second.Status)
	assert.Equal(t, 2, second.Slot)
	require.Equal(t, first.SessionID, second.SessionID)

	return first.SessionID, p1, p2
}

func choose(r http.Handler, sessionID, playerID string, round int, choice string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, "/api/game/choice", SubmitChoiceRequest{
		SessionID:   sessionID,
		PlayerID:    playerID,
		RoundNumber: round,
		Choice:      choice,
	})
}

func TestGameFlow(t *testing.T) {
	r, _ := newTestRouter(t, false)
	sessionID, p1, p2 := startPair(t, r)

	w := choose(r, sessionID, p1, 1, "Cooperate")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pending := decode[service.SubmitResult](t, w)
	assert.Equal(t, domain.RoundInProgress, pending.Status)
	assert.Nil(t, pending.Outcome)

	w = choose(r, sessionID, p2, 1, "defect")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[service.SubmitResult](t, w)
	assert.Equal(t, domain.RoundCompleted, done.Status)
	require.NotNil(t, done.Outcome)
	assert.Equal(t, 0, done.Outcome.Players[0].Delta)
	assert.Equal(t, 5, done.Outcome.Players[1].Delta)
	assert.Equal(t, 2, done.CurrentRound)

	w = doJSON(r, http.MethodGet, "/api/game/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[service.SessionInfo](t, w)
	assert.Equal(t, domain.SessionActive, info.Status)
	assert.Equal(t, "Alice", info.Player1Name)
	assert.Equal(t, "Bob", info.Player2Name)
	assert.Equal(t, 2, info.CurrentRound)

	w = doJSON(r, http.MethodGet, "/api/game/"+sessionID+"/round/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	round := decode[service.RoundInfo](t, w)
	assert.Equal(t, domain.RoundCompleted, round.Status)
	assert.Equal(t, 1, round.RoundNumber)

	// последний раунд завершает сессию
	require.Equal(t, http.StatusOK, choose(r, sessionID, p1, 2, "Defect").Code)
	w = choose(r, sessionID, p2, 2, "Defect")
	require.Equal(t, http.StatusOK, w.Code)
	last := decode[service.SubmitResult](t, w)
	assert.Equal(t, domain.SessionCompleted, last.SessionStatus)

	w = choose(r, sessionID, p1, 3, "Cooperate")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodGet, "/api/game/"+sessionID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[service.SessionHistory](t, w)
	assert.Len(t, history.Rounds, 2)
	assert.NotEmpty(t, history.Audit)
}

func TestSubmitChoice_Errors(t *testing.T) {
	r, _ := newTestRouter(t, false)
	sessionID, p1, _ := startPair(t, r)
	require.Equal(t, http.StatusOK, choose(r, sessionID, p1, 1, "Cooperate").Code)

	cases := []struct {
		name   string
		w      *httptest.ResponseRecorder
		status int
	}{
		{"unknown session", choose(r, uuid.NewString(), p1, 1, "Cooperate"), http.StatusNotFound},
		{"session id not uuid", choose(r, "abc", p1, 1, "Cooperate"), http.StatusBadRequest},
		{"player id not uuid", choose(r, sessionID, "abc", 1, "Cooperate"), http.StatusBadRequest},
		{"stranger", choose(r, sessionID, uuid.NewString(), 1, "Cooperate"), http.StatusBadRequest},
		{"bad choice", choose(r, sessionID, p1, 1, "Maybe"), http.StatusBadRequest},
		{"wrong round", choose(r, sessionID, p1, 5, "Cooperate"), http.StatusBadRequest},
		{"chosen twice", choose(r, sessionID, p1, 1, "Defect"), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.w.Code, tc.w.Body.String())
			assert.Equal(t, problemContentType, tc.w.Header().Get("Content-Type"))
			p := decode[Problem](t, tc.w)
			assert.Equal(t, tc.status, p.Status)
			assert.NotEmpty(t, p.Detail)
		})
	}
}

func TestSubmitChoice_WaitingSession(t *testing.T) {
	r, _ := newTestRouter(t, false)
	p1 := uuid.NewString()
	w := doJSON(r, http.MethodPost, "/api/game/start", StartGameRequest{PlayerID: p1, PlayerName: "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[service.JoinResult](t, w)

	w = choose(r, res.SessionID, p1, 1, "Cooperate")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartGame_Validation(t *testing.T) {
	r, _ := newTestRouter(t, false)

	w := doJSON(r, http.MethodPost, "/api/game/start", StartGameRequest{PlayerName: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/game/start", StartGameRequest{PlayerID: "nope", PlayerName: "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/game/start", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetInfo_NotFound(t *testing.T) {
	r, _ := newTestRouter(t, false)
	sessionID, _, _ := startPair(t, r)

	paths := []string{
		"/api/game/not-a-uuid",
		"/api/game/" + uuid.NewString(),
		"/api/game/" + sessionID + "/round/abc",
		"/api/game/" + sessionID + "/round/0",
		"/api/game/" + sessionID + "/round/7",
		"/api/game/" + uuid.NewString() + "/history",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			w := doJSON(r, http.MethodGet, p, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		})
	}
}

func TestCloseSession(t *testing.T) {
	r, _ := newTestRouter(t, false)
	sessionID, p1, _ := startPair(t, r)

	w := doJSON(r, http.MethodPost, "/api/game/"+sessionID+"/close", gin.H{"playerId": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/game/"+sessionID+"/close", gin.H{"playerId": p1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decode[service.SessionInfo](t, w)
	assert.Equal(t, domain.SessionCompleted, info.Status)

	w = doJSON(r, http.MethodPost, "/api/game/"+sessionID+"/close", gin.H{"playerId": p1})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRespondError_Mapping(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		retryable bool
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound, false},
		{domain.ErrAlreadyChosen, http.StatusConflict, false},
		{domain.ErrInvalidChoice, http.StatusBadRequest, false},
		{fmt.Errorf("%w: submit_choice", domain.ErrConcurrencyConflict), http.StatusConflict, true},
		{errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			RespondError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			p := decode[Problem](t, w)
			assert.Equal(t, tc.retryable, p.Retryable)
			assert.Equal(t, "/x", p.Instance)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "An unexpected error occurred", p.Detail)
			}
		})
	}
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestToken(t *testing.T) {
	r, h := newTestRouter(t, true)

	w := postForm(r, "/api/auth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"client-001"},
		"client_secret": {"s3cret"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok := decode[service.IssuedToken](t, w)
	assert.Equal(t, "Bearer", tok.TokenType)
	_, err := h.Auth.ParseToken(tok.AccessToken)
	assert.NoError(t, err)

	w = postForm(r, "/api/auth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"client-001"},
		"client_secret": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_client")

	w = postForm(r, "/api/auth/token", url.Values{"grant_type": {"password"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_grant_type")
}

func TestToken_Disabled(t *testing.T) {
	r, _ := newTestRouter(t, false)
	w := postForm(r, "/api/auth/token", url.Values{"grant_type": {"client_credentials"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	r, h := newTestRouter(t, false)

	w := doJSON(r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)

	w = doJSON(r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"up"`)

	h.Checks["redis"] = downPinger{}
	w = doJSON(r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}
