package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stashspace/stashspace/internal/platform/httpx"
	"github.com/stashspace/stashspace/internal/shared"
)

// Handler exposes the read-only catalog: what spaces and services a trader
// can ask for.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers catalog routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/catalog/warehouses/{warehouseID}/spaces", h.ListSpaces)
	r.Get("/catalog/services", h.ListServices)
}

func (h *Handler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	spaces, err := h.repo.ListSpaces(r.Context(), warehouseID)
	if err != nil {
		h.logger.Error("list spaces", slog.Int64("warehouse_id", warehouseID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, spaces)
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.repo.ListServices(r.Context())
	if err != nil {
		h.logger.Error("list services", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, services)
}
