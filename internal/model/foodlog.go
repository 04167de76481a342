package model

import "time"

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// FoodLog is an immutable entry in a user's food diary. Nutrition facts are
// optional; nil means "not recorded", which is different from zero.
type FoodLog struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"user_id"   db:"user_id"`
	FoodName  string    `json:"food_name" db:"food_name"`
	Quantity  string    `json:"quantity,omitempty" db:"quantity"`
	Calories  *int      `json:"calories"  db:"calories"`
	Carbs     *float64  `json:"carbs"     db:"carbs"`
	Protein   *float64  `json:"protein"   db:"protein"`
	MealType  MealType  `json:"meal_type,omitempty" db:"meal_type"`
	Timestamp time.Time `json:"timestamp" db:"recorded_at"`
}
