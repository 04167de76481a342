package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

const (
	DefaultFoodLogLimit = 50
	MaxFoodLogLimit     = 200
	MaxFoodNameLength   = 200
)

// FoodLogService records and lists a user's food diary.
type FoodLogService struct {
	logs   repository.FoodLogRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewFoodLogService(logs repository.FoodLogRepository, logger *slog.Logger) *FoodLogService {
	return &FoodLogService{logs: logs, logger: logger, now: time.Now}
}

// FoodLogInput is one diary entry. Nil nutrition fields are "not recorded".
type FoodLogInput struct {
	FoodName string
	Quantity string
	Calories *int
	Carbs    *float64
	Protein  *float64
	MealType model.MealType
}

func (s *FoodLogService) Create(ctx context.Context, userID string, in FoodLogInput) (*model.FoodLog, error) {
	if err := validateFoodLog(&in); err != nil {
		return nil, err
	}

	log := &model.FoodLog{
		UserID:    userID,
		FoodName:  in.FoodName,
		Quantity:  in.Quantity,
		Calories:  in.Calories,
		Carbs:     in.Carbs,
		Protein:   in.Protein,
		MealType:  in.MealType,
		Timestamp: s.now().UTC(),
	}
	if _, err := s.logs.Append(ctx, log); err != nil {
		return nil, fmt.Errorf("creating food log: %w", err)
	}

	s.logger.Debug("food log recorded", slog.String("user_id", userID), slog.String("log_id", log.ID))
	return log, nil
}

// ListRecent returns the newest entries first. limit 0 means the default.
func (s *FoodLogService) ListRecent(ctx context.Context, userID string, limit int) ([]model.FoodLog, error) {
	switch {
	case limit == 0:
		limit = DefaultFoodLogLimit
	case limit < 0 || limit > MaxFoodLogLimit:
		return nil, apperror.ValidationFailed("limit",
			fmt.Sprintf("limit must be between 1 and %d", MaxFoodLogLimit))
	}

	logs, err := s.logs.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing food logs: %w", err)
	}
	return logs, nil
}

func validateFoodLog(in *FoodLogInput) error {
	in.FoodName = strings.TrimSpace(in.FoodName)
	in.Quantity = strings.TrimSpace(in.Quantity)

	if in.FoodName == "" {
		return apperror.ValidationFailed("food_name", "food_name is required")
	}
	if len(in.FoodName) > MaxFoodNameLength {
		return apperror.ValidationFailed("food_name",
			fmt.Sprintf("food_name must be %d characters or fewer", MaxFoodNameLength))
	}
	if in.Calories != nil && *in.Calories < 0 {
		return apperror.ValidationFailed("calories", "calories must not be negative")
	}
	for field, v := range map[string]*float64{"carbs": in.Carbs, "protein": in.Protein} {
		if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return apperror.ValidationFailed(field, field+" must be a non-negative number")
		}
	}
	switch in.MealType {
	case "", model.MealBreakfast, model.MealLunch, model.MealDinner, model.MealSnack:
	default:
		return apperror.ValidationFailed("meal_type", "meal_type must be breakfast, lunch, dinner or snack")
	}
	return nil
}
