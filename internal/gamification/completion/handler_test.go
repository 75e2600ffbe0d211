package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchestratorMock struct {
	result *Result
	err    error
	calls  int
}

func (m *orchestratorMock) ProcessWorkoutCompletion(_ context.Context, _, _ string) (*Result, error) {
	m.calls++
	return m.result, m.err
}

type resultCacheMock struct {
	stored map[string]*Result
	setErr error
}

func newResultCacheMock() *resultCacheMock {
	return &resultCacheMock{
		stored: map[string]*Result{},
	}
}

func (m *resultCacheMock) Set(_ context.Context, result *Result) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.stored[result.SessionID] = result
	return nil
}

func (m *resultCacheMock) Get(_ context.Context, sessionID string) (*Result, error) {
	return m.stored[sessionID], nil
}

func completeRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/gamification/complete", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleComplete(t *testing.T) {
	result := &Result{
		SessionID: "sess-1",
		UserID:    "user-1",
		XPEarned:  125,
		NewLevel:  1,
	}
	orch := &orchestratorMock{result: result}
	cache := newResultCacheMock()
	handler := NewHandler(orch, cache)

	rr := httptest.NewRecorder()
	handler.HandleComplete(rr, completeRequest(t, CompleteRequest{UserID: "user-1", SessionID: "sess-1"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, orch.calls)

	var got Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(125), got.XPEarned)

	// result cached for duplicate retries
	assert.NotNil(t, cache.stored["sess-1"])
}

func TestHandleComplete_InvalidRequests(t *testing.T) {
	handler := NewHandler(&orchestratorMock{}, newResultCacheMock())

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/gamification/complete", nil)
		rr := httptest.NewRecorder()
		handler.HandleComplete(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/gamification/complete", bytes.NewReader([]byte("{nope")))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		handler.HandleComplete(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing ids", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.HandleComplete(rr, completeRequest(t, CompleteRequest{UserID: "user-1"}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleComplete_AlreadyProcessedWithCachedResult(t *testing.T) {
	orch := &orchestratorMock{err: ErrAlreadyProcessed}
	cache := newResultCacheMock()
	cache.stored["sess-1"] = &Result{SessionID: "sess-1", UserID: "user-1", XPEarned: 125}
	handler := NewHandler(orch, cache)

	rr := httptest.NewRecorder()
	handler.HandleComplete(rr, completeRequest(t, CompleteRequest{UserID: "user-1", SessionID: "sess-1"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var got Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(125), got.XPEarned)
}

func TestHandleComplete_AlreadyProcessedCacheMiss(t *testing.T) {
	orch := &orchestratorMock{err: ErrAlreadyProcessed}
	handler := NewHandler(orch, newResultCacheMock())

	rr := httptest.NewRecorder()
	handler.HandleComplete(rr, completeRequest(t, CompleteRequest{UserID: "user-1", SessionID: "sess-1"}))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleComplete_OrchestratorFailure(t *testing.T) {
	orch := &orchestratorMock{err: assert.AnError}
	handler := NewHandler(orch, newResultCacheMock())

	rr := httptest.NewRecorder()
	handler.HandleComplete(rr, completeRequest(t, CompleteRequest{UserID: "user-1", SessionID: "sess-1"}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "could not record workout completion")
}

func TestHandleComplete_CacheSetFailureIsNotFatal(t *testing.T) {
	orch := &orchestratorMock{result: &Result{SessionID: "sess-1", UserID: "user-1", XPEarned: 50}}
	cache := newResultCacheMock()
	cache.setErr = assert.AnError
	handler := NewHandler(orch, cache)

	rr := httptest.NewRecorder()
	handler.HandleComplete(rr, completeRequest(t, CompleteRequest{UserID: "user-1", SessionID: "sess-1"}))

	assert.Equal(t, http.StatusOK, rr.Code)
}
