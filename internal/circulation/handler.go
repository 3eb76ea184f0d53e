// internal/circulation/handler.go
package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"loandesk/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the loan endpoints under r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/loans", h.handleIssue)
	r.Get("/loans/{id}", h.handleGetLoan)
	r.Post("/loans/{id}/return", h.handleReturn)
	r.Get("/members/{id}/loans", h.handleActiveLoans)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN     string `json:"isbn"`
		MemberID string `json:"member_id"`
	}

	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.ISBN == "" || req.MemberID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "isbn and member_id are required", "")
		return
	}

	loan, err := h.service.Issue(r.Context(), req.ISBN, req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.Return(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleActiveLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ActiveLoans(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loans)
}

// StatusCode maps a circulation error to an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindItemUnavailable, KindLoanLimitReached, KindMemberHasOverdueLoan, KindAlreadyReturned:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	if kind == KindUnknown {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	httpx.WriteError(w, StatusCode(err), err.Error(), kind.String())
}
