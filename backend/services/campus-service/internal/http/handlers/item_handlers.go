package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

// ItemHandlers serves the catalog.
type ItemHandlers struct {
	items  *service.ItemService
	logger *zap.Logger
}

// NewItemHandlers returns handler.
func NewItemHandlers(items *service.ItemService, logger *zap.Logger) *ItemHandlers {
	return &ItemHandlers{items: items, logger: logger}
}

type itemRequest struct {
	Type      models.Module `json:"type"`
	Name      string        `json:"name"`
	Price     money.Amount  `json:"price"`
	Quantity  *int          `json:"quantity"`
	Topics    []string      `json:"topics"`
	Author    string        `json:"author"`
	ISBN      string        `json:"isbn"`
	Publisher string        `json:"publisher"`
	Year      int           `json:"year"`
}

func (req itemRequest) toModel() (*models.Item, error) {
	if req.Quantity == nil {
		return nil, invalid("quantity is required")
	}
	return &models.Item{
		Type:      req.Type,
		Name:      req.Name,
		Price:     req.Price,
		Quantity:  *req.Quantity,
		Topics:    req.Topics,
		Author:    req.Author,
		ISBN:      req.ISBN,
		Publisher: req.Publisher,
		Year:      req.Year,
	}, nil
}

// List handles GET /items?type=.
func (h *ItemHandlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context(), models.Module(strings.TrimSpace(r.URL.Query().Get("type"))))
	if err != nil {
		writeServiceError(w, h.logger, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// Get handles GET /items/{id}.
func (h *ItemHandlers) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Create handles POST /items.
func (h *ItemHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "create item", err)
		return
	}
	item, err := req.toModel()
	if err != nil {
		writeServiceError(w, h.logger, "create item", err)
		return
	}
	created, err := h.items.Create(r.Context(), item)
	if err != nil {
		writeServiceError(w, h.logger, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /items/{id}.
func (h *ItemHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "update item", err)
		return
	}
	item, err := req.toModel()
	if err != nil {
		writeServiceError(w, h.logger, "update item", err)
		return
	}
	updated, err := h.items.Update(r.Context(), r.PathValue("id"), item)
	if err != nil {
		writeServiceError(w, h.logger, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /items/{id}.
func (h *ItemHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
