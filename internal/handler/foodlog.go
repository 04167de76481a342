package handler

import (
	"net/http"

	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

type FoodLogHandler struct {
	Responder
	logs *service.FoodLogService
}

func NewFoodLogHandler(logs *service.FoodLogService, rs Responder) *FoodLogHandler {
	return &FoodLogHandler{Responder: rs, logs: logs}
}

type createFoodLogRequest struct {
	FoodName string   `json:"food_name" validate:"required,max=200"`
	Quantity string   `json:"quantity"  validate:"max=100"`
	Calories *int     `json:"calories"  validate:"omitempty,gte=0"`
	Carbs    *float64 `json:"carbs"     validate:"omitempty,gte=0"`
	Protein  *float64 `json:"protein"   validate:"omitempty,gte=0"`
	MealType string   `json:"meal_type" validate:"omitempty,oneof=breakfast lunch dinner snack"`
}

// HandleCreate adds a food diary entry.
//
// HTTP: POST /api/food-logs
func (h *FoodLogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req createFoodLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	log, err := h.logs.Create(r.Context(), caller.ID, service.FoodLogInput{
		FoodName: req.FoodName,
		Quantity: req.Quantity,
		Calories: req.Calories,
		Carbs:    req.Carbs,
		Protein:  req.Protein,
		MealType: model.MealType(req.MealType),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"log_id": log.ID, "log": log})
}

// HandleList returns the caller's most recent entries.
//
// HTTP: GET /api/food-logs?limit=<n>
func (h *FoodLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logs, err := h.logs.ListRecent(r.Context(), caller.ID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"logs": logs})
}
