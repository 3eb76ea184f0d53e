// internal/audit/handler.go
package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"loandesk/internal/httpx"
	"loandesk/internal/logger"
)

type Handler struct {
	src            Source
	maxActiveLoans int
	log            *logger.Logger
}

func NewHandler(src Source, maxActiveLoans int, log *logger.Logger) *Handler {
	return &Handler{src: src, maxActiveLoans: maxActiveLoans, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/audit", h.handleAudit)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := Check(r.Context(), h.src, h.maxActiveLoans)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if !report.Consistent() {
		h.log.Warn("audit found violations", "count", len(report.Violations))
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}
