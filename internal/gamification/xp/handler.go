package xp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/liftlog/gamify/internal/gamification/profile"
	"github.com/liftlog/gamify/internal/telemetry/tracing"
	"github.com/liftlog/gamify/pkg"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ledgerService interface {
	History(ctx context.Context, userID string, page, size int) ([]Grant, int, error)
	Reconcile(ctx context.Context, userID string, profileXP int64) (ReconciliationReport, error)
}

type profileGetter interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

type LedgerListResponse struct {
	Grants []Grant `json:"grants"`
	Total  int     `json:"total"`
}

type Handler struct {
	ledger   ledgerService
	profiles profileGetter
}

func NewHandler(ledger ledgerService, profiles profileGetter) *Handler {
	return &Handler{
		ledger:   ledger,
		profiles: profiles,
	}
}

// HandleLedger returns one page of the user's XP grant history.
func (handler *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.xp.ledger")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	page, size, err := pageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	grants, total, err := handler.ledger.History(ctx, userID, page, size)
	if err != nil {
		log.Errorf("failed to get xp ledger for user %s: %s", userID, err)
		http.Error(w, "failed to get xp ledger", http.StatusInternalServerError)
		return
	}
	if grants == nil {
		grants = []Grant{}
	}

	respJson, err := json.Marshal(LedgerListResponse{Grants: grants, Total: total})
	if err != nil {
		log.Errorf("failed to marshal xp ledger: %s", err)
		http.Error(w, "failed to get xp ledger", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

// HandleReconcile compares the profile XP projection against the ledger
// sum. Meant for operators chasing drift after partial failures.
func (handler *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.xp.reconcile")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	p, err := handler.profiles.Get(ctx, userID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("failed to get profile for reconciliation, user %s: %s", userID, err)
		http.Error(w, "failed to reconcile", http.StatusInternalServerError)
		return
	}

	report, err := handler.ledger.Reconcile(ctx, userID, p.TotalXP)
	if err != nil {
		log.Errorf("failed to reconcile xp for user %s: %s", userID, err)
		http.Error(w, "failed to reconcile", http.StatusInternalServerError)
		return
	}

	reportJson, err := json.Marshal(report)
	if err != nil {
		log.Errorf("failed to marshal reconciliation report: %s", err)
		http.Error(w, "failed to reconcile", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, reportJson, http.StatusOK)
}

func pageParams(r *http.Request) (page, size int, err error) {
	page = 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, errors.New("error, invalid page")
		}
	}

	size = defaultPageSize
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil || size < 1 {
			return 0, 0, errors.New("error, invalid size")
		}
		if size > maxPageSize {
			size = maxPageSize
		}
	}

	return page, size, nil
}
