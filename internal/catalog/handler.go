// internal/catalog/handler.go
package catalog

import (
	"errors"
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

// Routes mounts the catalog endpoints under r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/items", h.handleAddItem)
	r.Get("/items", h.handleListItems)
	r.Get("/items/{isbn}", h.handleGetItem)
	r.Patch("/items/{isbn}", h.handleRetitleItem)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN  string `json:"isbn"`
		Title string `json:"title"`
	}

	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	item, err := h.service.AddItem(r.Context(), req.ISBN, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleRetitleItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}

	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	item, err := h.service.RetitleItem(r.Context(), chi.URLParam(r, "isbn"), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, item)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidItem):
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrItemNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, ErrItemExists):
		httpx.WriteError(w, http.StatusConflict, err.Error(), "conflict")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}
