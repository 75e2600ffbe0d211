package achievements

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/liftlog/gamify/internal/telemetry/tracing"
	"github.com/liftlog/gamify/pkg"
)

type achievementsLister interface {
	ListForUser(ctx context.Context, userID string) ([]UserAchievement, error)
}

type AchievementsListResponse struct {
	Achievements []UserAchievement `json:"achievements"`
	Unlocked     int               `json:"unlocked"`
	Total        int               `json:"total"`
}

type Handler struct {
	engine  achievementsLister
	catalog *Catalog
}

func NewHandler(engine achievementsLister, catalog *Catalog) *Handler {
	return &Handler{
		engine:  engine,
		catalog: catalog,
	}
}

// HandleCatalog returns the raw achievement catalog, no user state.
func (handler *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.achievements.catalog")
	defer span.End()

	catalogJson, err := json.Marshal(handler.catalog.All())
	if err != nil {
		log.Errorf("failed to marshal achievement catalog: %s", err)
		http.Error(w, "failed to get catalog", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, catalogJson, http.StatusOK)
}

// HandleList returns the whole catalog with the user's unlock state,
// locked entries included so clients can show progress.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.achievements.list")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	all, err := handler.engine.ListForUser(ctx, userID)
	if err != nil {
		log.Errorf("failed to list achievements for user %s: %s", userID, err)
		http.Error(w, "failed to list achievements", http.StatusInternalServerError)
		return
	}

	resp := AchievementsListResponse{
		Achievements: all,
		Total:        len(all),
	}
	for _, ua := range all {
		if ua.Unlocked {
			resp.Unlocked++
		}
	}

	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("failed to marshal achievements: %s", err)
		http.Error(w, "failed to list achievements", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
