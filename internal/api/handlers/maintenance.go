// maintenance.go — обслуживание загрузок, не записанных локально.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MaintenanceHandler — обработчик endpoints /api/v1/maintenance/*.
type MaintenanceHandler struct {
	svc OrphanService
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(svc OrphanService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

// ListOrphans обрабатывает GET /api/v1/maintenance/orphans.
func (h *MaintenanceHandler) ListOrphans(w http.ResponseWriter, r *http.Request) {
	entries, serr := h.svc.ListOrphans(r.Context())
	if serr != nil {
		writeSyncError(w, serr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"total": len(entries),
	})
}

// AdoptOrphan обрабатывает POST /api/v1/maintenance/orphans/{tx_id}/adopt.
// Добавляет запись из журнала в хранилище.
func (h *MaintenanceHandler) AdoptOrphan(w http.ResponseWriter, r *http.Request) {
	rec, serr := h.svc.AdoptOrphan(r.Context(), chi.URLParam(r, "tx_id"))
	if serr != nil {
		writeSyncError(w, serr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file":    rec,
	})
}

// DiscardOrphan обрабатывает POST /api/v1/maintenance/orphans/{tx_id}/discard.
// Удаляет сообщение из канала.
func (h *MaintenanceHandler) DiscardOrphan(w http.ResponseWriter, r *http.Request) {
	if serr := h.svc.DiscardOrphan(r.Context(), chi.URLParam(r, "tx_id")); serr != nil {
		writeSyncError(w, serr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
