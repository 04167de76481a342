package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/geniesugar/glucose-monitor/internal/alert"
	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/dexcom"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/notify"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow pins a service clock.
func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	nextID  int
	listErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	if user.Role == "" {
		user.Role = model.RolePatient
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

// add stores a user directly and returns it.
func (f *fakeUserRepo) add(name string, role model.Role) *model.User {
	u := &model.User{
		FullName: name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:     role,
	}
	if err := f.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.User{}
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeUserRepo) LinkDevice(ctx context.Context, userID, dexcomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.DexcomID = dexcomID
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

// fakeTimeline is an in-memory repository.TimelineRepository with
// transaction semantics: WithinTx works on a copy and swaps it in on success.
type fakeTimeline struct {
	mu       sync.Mutex
	readings []model.GlucoseReading
	nextID   int

	queryErr    map[string]error // per user
	appendErr   error
	failAfterTx int // AppendSynced fails once this many rows were inserted in one tx; 0 disables
}

func newFakeTimeline() *fakeTimeline {
	return &fakeTimeline{queryErr: make(map[string]error)}
}

func (f *fakeTimeline) Append(ctx context.Context, r *model.GlucoseReading) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.nextID++
	r.ID = fmt.Sprintf("r-%d", f.nextID)
	f.readings = append(f.readings, *r)
	return r.ID, nil
}

func (f *fakeTimeline) Query(ctx context.Context, userID string, since time.Time) ([]model.GlucoseReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.queryErr[userID]; err != nil {
		return nil, err
	}
	out := []model.GlucoseReading{}
	for _, r := range f.readings {
		if r.UserID == userID && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeTimeline) Recent(ctx context.Context, userID string, n int) ([]model.GlucoseReading, error) {
	all, err := f.Query(ctx, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (f *fakeTimeline) Exists(ctx context.Context, userID string, ts time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return exists(f.readings, userID, ts), nil
}

func exists(rs []model.GlucoseReading, userID string, ts time.Time) bool {
	return slices.ContainsFunc(rs, func(r model.GlucoseReading) bool {
		return r.UserID == userID && r.Timestamp.Equal(ts)
	})
}

func (f *fakeTimeline) WithinTx(ctx context.Context, fn func(tx repository.TimelineTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{parent: f, rows: slices.Clone(f.readings)}
	if err := fn(tx); err != nil {
		return err
	}
	f.readings = tx.rows
	return nil
}

func (f *fakeTimeline) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.readings {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

type fakeTx struct {
	parent   *fakeTimeline
	rows     []model.GlucoseReading
	inserted int
}

func (x *fakeTx) Exists(ctx context.Context, userID string, ts time.Time) (bool, error) {
	return exists(x.rows, userID, ts), nil
}

func (x *fakeTx) AppendSynced(ctx context.Context, r *model.GlucoseReading) (bool, error) {
	if x.parent.failAfterTx > 0 && x.inserted >= x.parent.failAfterTx {
		return false, errors.New("disk I/O error")
	}
	x.parent.nextID++
	r.ID = fmt.Sprintf("r-%d", x.parent.nextID)
	r.Synced = true
	x.rows = append(x.rows, *r)
	x.inserted++
	return true, nil
}

// recordingOutbox keeps every queued message. reject=true simulates a full
// queue.
type recordingOutbox struct {
	mu     sync.Mutex
	msgs   []notify.Message
	reject bool
}

func (o *recordingOutbox) Enqueue(msg notify.Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.reject {
		return false
	}
	o.msgs = append(o.msgs, msg)
	return true
}

func (o *recordingOutbox) byChannel(ch notify.Channel) []notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []notify.Message
	for _, m := range o.msgs {
		if m.Channel == ch {
			out = append(out, m)
		}
	}
	return out
}

// recordingAlerter classifies with the default thresholds and remembers
// what it saw.
type recordingAlerter struct {
	mu   sync.Mutex
	seen []model.GlucoseReading
}

func (a *recordingAlerter) Evaluate(ctx context.Context, user *model.User, r *model.GlucoseReading) alert.Level {
	a.mu.Lock()
	a.seen = append(a.seen, *r)
	a.mu.Unlock()
	return alert.Classify(r.Value)
}

// fakeFetcher serves a fixed set of samples, or an error.
type fakeFetcher struct {
	mu      sync.Mutex
	samples []dexcom.Sample
	err     error
	calls   int
	tokens  []string
}

func (f *fakeFetcher) FetchSamples(ctx context.Context, tok *oauth2.Token, start, end time.Time) ([]dexcom.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, tok.AccessToken)
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.samples), nil
}

// fakeCreds is an in-memory repository.CredentialRepository.
type fakeCreds struct {
	mu    sync.Mutex
	creds map[string]model.DeviceCredential
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{creds: make(map[string]model.DeviceCredential)}
}

func (f *fakeCreds) Save(ctx context.Context, c *model.DeviceCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[c.UserID] = *c
	return nil
}

func (f *fakeCreds) Get(ctx context.Context, userID string) (*model.DeviceCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[userID]
	if !ok {
		return nil, apperror.NotFound("device credential", userID)
	}
	return &c, nil
}

// countingInvalidator records Invalidate calls.
type countingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingInvalidator) Invalidate(ctx context.Context, patientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, patientID)
}
