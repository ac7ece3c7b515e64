package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
	drinksvc "github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/drink"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/validation"
)

// maxBodyBytes caps POST and PATCH request bodies.
const maxBodyBytes = 1 << 20

// DrinkService defines the drink operations needed by the HTTP handlers
type DrinkService interface {
	List(ctx context.Context) ([]models.Drink, error)
	Create(ctx context.Context, in drinksvc.Input) (*models.Drink, error)
	Update(ctx context.Context, id int64, in drinksvc.Input) (*models.Drink, error)
	Delete(ctx context.Context, id int64) error
}

// DrinkHandlers serves the /drinks endpoints.
type DrinkHandlers struct {
	service   DrinkService
	validator validation.Validator
}

// NewDrinkHandlers creates a new handler set for drink operations
func NewDrinkHandlers(service DrinkService, validator validation.Validator) *DrinkHandlers {
	return &DrinkHandlers{service: service, validator: validator}
}

type drinksResponse[T any] struct {
	Success bool `json:"success"`
	Drinks  []T  `json:"drinks"`
}

type deletedResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

// ListShort handles GET /drinks - public list without ingredient names
func (h *DrinkHandlers) ListShort(w http.ResponseWriter, r *http.Request) {
	drinks, err := h.service.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	out := make([]models.DrinkShort, 0, len(drinks))
	for i := range drinks {
		short, err := drinks[i].Short()
		if err != nil {
			WriteError(w, r, err)
			return
		}
		out = append(out, short)
	}

	writeJSON(w, http.StatusOK, drinksResponse[models.DrinkShort]{Success: true, Drinks: out})
}

// ListLong handles GET /drinks-detail - full recipes, get:drinks-detail required
func (h *DrinkHandlers) ListLong(w http.ResponseWriter, r *http.Request) {
	drinks, err := h.service.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	out := make([]models.DrinkLong, 0, len(drinks))
	for i := range drinks {
		long, err := drinks[i].Long()
		if err != nil {
			WriteError(w, r, err)
			return
		}
		out = append(out, long)
	}

	writeJSON(w, http.StatusOK, drinksResponse[models.DrinkLong]{Success: true, Drinks: out})
}

// Create handles POST /drinks - post:drinks required
func (h *DrinkHandlers) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.decode(r, validation.SchemaDrinkCreate)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	drink, err := h.service.Create(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.writeOne(w, r, drink)
}

// Update handles PATCH /drinks/{id} - patch:drinks required
func (h *DrinkHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := drinkID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	in, err := h.decode(r, validation.SchemaDrinkUpdate)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	drink, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.writeOne(w, r, drink)
}

// Delete handles DELETE /drinks/{id} - delete:drinks required
func (h *DrinkHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := drinkID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deletedResponse{Success: true, Deleted: id})
}

func (h *DrinkHandlers) writeOne(w http.ResponseWriter, r *http.Request, drink *models.Drink) {
	long, err := drink.Long()
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drinksResponse[models.DrinkLong]{Success: true, Drinks: []models.DrinkLong{long}})
}

func (h *DrinkHandlers) decode(r *http.Request, schema string) (drinksvc.Input, error) {
	if r.Body == nil {
		return drinksvc.Input{}, fmt.Errorf("%w: no body", drinksvc.ErrInvalidInput)
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return drinksvc.Input{}, fmt.Errorf("%w: read body: %v", drinksvc.ErrInvalidInput, err)
	}
	if len(body) > maxBodyBytes {
		return drinksvc.Input{}, fmt.Errorf("%w: body exceeds %d bytes", drinksvc.ErrInvalidInput, maxBodyBytes)
	}

	return drinksvc.DecodeInput(h.validator, schema, body)
}

// drinkID parses the {id} path parameter. Anything but a positive integer is
// treated as an unknown drink.
func drinkID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", drinksvc.ErrNotFound, raw)
	}
	return id, nil
}
