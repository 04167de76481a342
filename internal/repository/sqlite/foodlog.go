package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

var _ repository.FoodLogRepository = (*FoodLogDB)(nil)

// FoodLogDB stores the append-only food diary.
type FoodLogDB struct {
	conn *sql.DB
}

// Append inserts a food log entry and returns its new ID.
func (f *FoodLogDB) Append(ctx context.Context, log *model.FoodLog) (string, error) {
	if log.UserID == "" {
		return "", apperror.ValidationFailed("user_id", "user_id is required")
	}
	if strings.TrimSpace(log.FoodName) == "" {
		return "", apperror.ValidationFailed("food_name", "food_name is required")
	}
	if log.Timestamp.IsZero() {
		return "", apperror.ValidationFailed("timestamp", "timestamp is required")
	}

	log.ID = xid.New().String()
	log.Timestamp = log.Timestamp.UTC()

	_, err := f.conn.ExecContext(ctx,
		`INSERT INTO food_logs (id, user_id, food_name, quantity, calories, carbs, protein, meal_type, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.UserID,
		log.FoodName,
		log.Quantity,
		nullInt(log.Calories),
		nullFloat(log.Carbs),
		nullFloat(log.Protein),
		string(log.MealType),
		toNanos(log.Timestamp),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: inserting food log for %s: %w", log.UserID, err)
	}
	return log.ID, nil
}

// ListRecent returns up to limit entries, newest first.
func (f *FoodLogDB) ListRecent(ctx context.Context, userID string, limit int) ([]model.FoodLog, error) {
	rows, err := f.conn.QueryContext(ctx,
		`SELECT id, user_id, food_name, quantity, calories, carbs, protein, meal_type, recorded_at
		 FROM food_logs
		 WHERE user_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing food logs for %s: %w", userID, err)
	}
	defer rows.Close()

	logs := []model.FoodLog{}
	for rows.Next() {
		var (
			l        model.FoodLog
			calories sql.NullInt64
			carbs    sql.NullFloat64
			protein  sql.NullFloat64
			meal     string
			ts       int64
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.FoodName, &l.Quantity,
			&calories, &carbs, &protein, &meal, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scanning food log row: %w", err)
		}
		if calories.Valid {
			c := int(calories.Int64)
			l.Calories = &c
		}
		if carbs.Valid {
			l.Carbs = &carbs.Float64
		}
		if protein.Valid {
			l.Protein = &protein.Float64
		}
		l.MealType = model.MealType(meal)
		l.Timestamp = fromNanos(ts)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating food log rows: %w", err)
	}
	return logs, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
