package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/geniesugar/glucose-monitor/internal/alert"
	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/notify"
)

// mockDispatcher is a testify mock for notify.Dispatcher.
type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) SendEmail(ctx context.Context, to, subject, body string) bool {
	return m.Called(ctx, to, subject, body).Bool(0)
}

func (m *mockDispatcher) SendSMS(ctx context.Context, to, body string) bool {
	return m.Called(ctx, to, body).Bool(0)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type readingFixture struct {
	svc      *ReadingService
	users    *fakeUserRepo
	timeline *fakeTimeline
	alerts   *recordingAlerter
	cache    *countingInvalidator
	patient  *model.User
}

func newReadingFixture(t *testing.T) *readingFixture {
	t.Helper()
	f := &readingFixture{
		users:    newFakeUserRepo(),
		timeline: newFakeTimeline(),
		alerts:   &recordingAlerter{},
		cache:    &countingInvalidator{},
	}
	f.patient = f.users.add("Pat Patient", model.RolePatient)
	f.svc = NewReadingService(f.users, f.timeline, f.alerts, NewTimelineLocks(), f.cache, nil, discardLogger())
	f.svc.now = fixedNow(testNow)
	return f
}

func TestRecord_StoresAndClassifies(t *testing.T) {
	cases := []struct {
		value float64
		want  alert.Level
	}{
		{69.9, alert.LowAlert},
		{70, alert.NoAlert},
		{120, alert.NoAlert},
		{200, alert.NoAlert},
		{200.1, alert.HighAlert},
	}
	for _, tc := range cases {
		f := newReadingFixture(t)

		res, err := f.svc.Record(context.Background(), f.patient.ID, RecordInput{Value: tc.value, Context: " fasting "})
		require.NoError(t, err)

		assert.NotEmpty(t, res.Reading.ID)
		assert.Equal(t, tc.want, res.Alert, "value %v", tc.value)
		assert.Equal(t, testNow, res.Reading.Timestamp)
		assert.Equal(t, "fasting", res.Reading.Context)
		assert.False(t, res.Reading.Synced)
		assert.Equal(t, 1, f.timeline.count(f.patient.ID))
		assert.Equal(t, []string{f.patient.ID}, f.cache.ids)
	}
}

func TestRecord_Validation(t *testing.T) {
	f := newReadingFixture(t)

	cases := map[string]RecordInput{
		"NaN":       {Value: math.NaN()},
		"+Inf":      {Value: math.Inf(1)},
		"negative":  {Value: -1},
		"future":    {Value: 100, Timestamp: testNow.Add(time.Hour)},
		"long note": {Value: 100, Notes: string(make([]byte, MaxNotesLength+1))},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Record(context.Background(), f.patient.ID, in)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
	assert.Equal(t, 0, f.timeline.count(f.patient.ID))
	assert.Empty(t, f.alerts.seen)
}

func TestRecord_UnknownUser(t *testing.T) {
	f := newReadingFixture(t)

	_, err := f.svc.Record(context.Background(), "ghost", RecordInput{Value: 100})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRecord_StorageFailureSkipsAlert(t *testing.T) {
	f := newReadingFixture(t)
	f.timeline.appendErr = errors.New("database is locked")

	_, err := f.svc.Record(context.Background(), f.patient.ID, RecordInput{Value: 40})
	require.Error(t, err)
	assert.Empty(t, f.alerts.seen, "alerts must only see committed readings")
}

// The reading is stored and its id returned even when every notification
// attempt fails or hangs until its deadline.
func TestRecord_DecoupledFromNotifier(t *testing.T) {
	cases := map[string]func(*mockDispatcher){
		"failing": func(d *mockDispatcher) {
			d.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false)
			d.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return(false)
		},
		"hanging": func(d *mockDispatcher) {
			wait := func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }
			d.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Run(wait).Return(false)
			d.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Run(wait).Return(false)
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			d := &mockDispatcher{}
			setup(d)

			queue := notify.NewQueue(d, notify.QueueConfig{
				Workers: 1, Size: 4, MaxAttempts: 2, Timeout: 200 * time.Millisecond,
			}, nil, discardLogger())
			queue.Start()
			defer queue.Stop()

			engine := alert.NewEngine(alert.DefaultThresholds(), alert.Policy{}, queue, nil, discardLogger())

			users := newFakeUserRepo()
			patient := users.add("Pat Patient", model.RolePatient)
			users.users[patient.ID].Phone = "+15550002222"
			timeline := newFakeTimeline()

			svc := NewReadingService(users, timeline, engine, NewTimelineLocks(), nil, nil, discardLogger())

			start := time.Now()
			res, err := svc.Record(context.Background(), patient.ID, RecordInput{Value: 45})
			elapsed := time.Since(start)

			require.NoError(t, err)
			assert.NotEmpty(t, res.Reading.ID)
			assert.Equal(t, alert.LowAlert, res.Alert)
			assert.Equal(t, 1, timeline.count(patient.ID))
			assert.Less(t, elapsed, 150*time.Millisecond, "Record waited on delivery")
		})
	}
}

func TestList_Window(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()

	for _, age := range []time.Duration{time.Hour, 3 * 24 * time.Hour, 10 * 24 * time.Hour} {
		_, err := f.timeline.Append(ctx, &model.GlucoseReading{
			UserID: f.patient.ID, Value: 100, Timestamp: testNow.Add(-age),
		})
		require.NoError(t, err)
	}

	got, err := f.svc.List(ctx, f.patient.ID, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 2, "default window is 7 days")
	assert.True(t, got[0].Timestamp.After(got[1].Timestamp), "newest first")

	got, err = f.svc.List(ctx, f.patient.ID, ListQuery{Days: 30})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	since := testNow.Add(-2 * time.Hour)
	got, err = f.svc.List(ctx, f.patient.ID, ListQuery{Since: &since, Days: 30})
	require.NoError(t, err)
	assert.Len(t, got, 1, "since wins over days")

	_, err = f.svc.List(ctx, f.patient.ID, ListQuery{Days: -1})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
