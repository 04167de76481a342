package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository/sqlite"
)

func TestAdminDeleteUser_Cascades(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	admin := &model.User{FullName: "Root", Email: "root@example.com", PasswordHash: "x", Role: model.RoleAdmin}
	patient := &model.User{FullName: "Pat", Email: "pat@example.com", PasswordHash: "x", Role: model.RolePatient}
	require.NoError(t, db.Users().Create(ctx, admin))
	require.NoError(t, db.Users().Create(ctx, patient))

	_, err = db.Timeline().Append(ctx, &model.GlucoseReading{UserID: patient.ID, Value: 110, Timestamp: time.Now()})
	require.NoError(t, err)

	inv := &countingInvalidator{}
	svc := NewAdminService(db.Users(), inv, discardLogger())
	caller := Caller{ID: admin.ID, Role: model.RoleAdmin}

	require.NoError(t, svc.DeleteUser(ctx, caller, patient.ID))
	assert.Equal(t, []string{patient.ID}, inv.ids)

	_, err = db.Users().GetUserByID(ctx, patient.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	readings, err := db.Timeline().Query(ctx, patient.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, readings)

	assert.ErrorIs(t, svc.DeleteUser(ctx, caller, patient.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, caller, admin.ID), apperror.ErrValidation)
}
