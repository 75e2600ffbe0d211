package records

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/liftlog/gamify/internal/telemetry/tracing"
	"github.com/liftlog/gamify/pkg"
)

type recordsReader interface {
	CurrentBests(ctx context.Context, userID string) ([]PersonalRecord, error)
	History(ctx context.Context, userID, exerciseName string, recordType RecordType) ([]PersonalRecord, error)
}

type RecordsListResponse struct {
	Records []PersonalRecord `json:"records"`
	Total   int              `json:"total"`
}

type Handler struct {
	repo recordsReader
}

func NewHandler(repo recordsReader) *Handler {
	return &Handler{
		repo: repo,
	}
}

// HandleCurrentBests returns the user's current PR per exercise and
// metric.
func (handler *Handler) HandleCurrentBests(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.currentbests")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	prs, err := handler.repo.CurrentBests(ctx, userID)
	if err != nil {
		log.Errorf("failed to get current bests for user %s: %s", userID, err)
		http.Error(w, "failed to get personal records", http.StatusInternalServerError)
		return
	}
	if prs == nil {
		prs = []PersonalRecord{}
	}

	respJson, err := json.Marshal(RecordsListResponse{Records: prs, Total: len(prs)})
	if err != nil {
		log.Errorf("failed to marshal personal records: %s", err)
		http.Error(w, "failed to get personal records", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

// HandleHistory returns every PR the user ever set for one exercise and
// metric, newest first.
func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.history")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	exerciseName := r.URL.Query().Get("exercise")
	if exerciseName == "" {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}

	recordType := RecordType(r.URL.Query().Get("type"))
	switch recordType {
	case RecordTypeWeight, RecordTypeReps, RecordTypeVolume:
	default:
		http.Error(w, "error, unknown record type", http.StatusBadRequest)
		return
	}

	prs, err := handler.repo.History(ctx, userID, exerciseName, recordType)
	if err != nil {
		log.Errorf("failed to get record history [%s, %s]: %s", exerciseName, recordType, err)
		http.Error(w, "failed to get record history", http.StatusInternalServerError)
		return
	}
	if prs == nil {
		prs = []PersonalRecord{}
	}

	respJson, err := json.Marshal(RecordsListResponse{Records: prs, Total: len(prs)})
	if err != nil {
		log.Errorf("failed to marshal record history: %s", err)
		http.Error(w, "failed to get record history", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
