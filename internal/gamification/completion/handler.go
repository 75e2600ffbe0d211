package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/liftlog/gamify/internal/telemetry/tracing"
	"github.com/liftlog/gamify/pkg"
)

type orchestrator interface {
	ProcessWorkoutCompletion(ctx context.Context, userID, sessionID string) (*Result, error)
}

type resultCache interface {
	Set(ctx context.Context, result *Result) error
	Get(ctx context.Context, sessionID string) (*Result, error)
}

type CompleteRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type Handler struct {
	orchestrator orchestrator
	cache        resultCache
}

func NewHandler(orchestrator orchestrator, cache resultCache) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		cache:        cache,
	}
}

func (handler *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.completion.complete")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("complete workout, unmarshal json params: %s", err)
		http.Error(w, "complete workout failed", http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.SessionID == "" {
		http.Error(w, "error, user id or session id empty", http.StatusBadRequest)
		return
	}

	result, err := handler.orchestrator.ProcessWorkoutCompletion(ctx, req.UserID, req.SessionID)
	if errors.Is(err, ErrAlreadyProcessed) {
		handler.respondAlreadyProcessed(ctx, w, req.SessionID)
		return
	}
	if err != nil {
		log.Errorf("failed to process completion [user %s, session %s]: %s", req.UserID, req.SessionID, err)
		http.Error(w, "error, could not record workout completion", http.StatusInternalServerError)
		return
	}

	if err := handler.cache.Set(ctx, result); err != nil {
		// the result is already committed, a cold cache only costs a
		// duplicate response some retried request would have gotten
		log.Errorf("failed to cache completion result for session %s: %s", req.SessionID, err)
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal completion result: %s", err)
		http.Error(w, "error, could not record workout completion", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resultJson, http.StatusOK)
}

// respondAlreadyProcessed serves the original result for a duplicate
// completion request when it is still cached, and a conflict otherwise.
func (handler *Handler) respondAlreadyProcessed(ctx context.Context, w http.ResponseWriter, sessionID string) {
	cached, err := handler.cache.Get(ctx, sessionID)
	if err != nil {
		log.Errorf("failed to get cached completion result for session %s: %s", sessionID, err)
	}
	if cached == nil {
		http.Error(w, "session completion already processed", http.StatusConflict)
		return
	}

	log.Debugf("duplicate completion for session %s, serving cached result", sessionID)

	cachedJson, err := json.Marshal(cached)
	if err != nil {
		log.Errorf("failed to marshal cached completion result: %s", err)
		http.Error(w, "session completion already processed", http.StatusConflict)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, cachedJson, http.StatusOK)
}
