package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakonic/taskdeck/models"
)

type fakeUserSource struct {
	users []models.User
	err   error
}

func (f *fakeUserSource) GetUsersWithEmail(ctx context.Context) ([]models.User, error) {
	return f.users, f.err
}

type fakeTodoSource struct {
	todos map[int64][]models.Todo
	err   error
}

func (f *fakeTodoSource) GetIncompleteTodos(ctx context.Context, userID int64) ([]models.Todo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.todos[userID], nil
}

type fakeMailer struct {
	mu    sync.Mutex
	sends []string // recipients, in order
	err   error
}

func (f *fakeMailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recipient)
	return f.err
}

func (f *fakeMailer) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func testUser(id int64, email string, reminderTime int) models.User {
	return models.User{
		ID:           id,
		Username:     "user",
		Email:        email,
		ReminderTime: reminderTime,
	}
}

func newTestScheduler(t *testing.T, users *fakeUserSource, todos *fakeTodoSource, mailer *fakeMailer, opts Options) *Scheduler {
	t.Helper()
	if opts.WakeInterval == 0 {
		opts.WakeInterval = time.Minute
	}
	opts.MailEnabled = true
	return New(users, todos, mailer, NewMemoryDedupStore(), opts)
}

func at(t *testing.T, s *Scheduler, year int, month time.Month, day, hour, min int) {
	t.Helper()
	s.nowFunc = func() time.Time {
		return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
	}
}

func TestTickSendsAtMostOncePerSlot(t *testing.T) {
	users := &fakeUserSource{users: []models.User{testUser(1, "a@example.com", 540)}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Buy milk", UserID: 1}},
	}}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, todos, mailer, Options{})

	// Several wakes within the same hour.
	for _, min := range []int{0, 1, 30, 59} {
		at(t, s, 2026, time.March, 10, 10, min)
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, mailer.sendCount())

	// The next hour reopens the slot.
	at(t, s, 2026, time.March, 10, 11, 0)
	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, mailer.sendCount())
}

func TestTickDateRolloverReopensSlot(t *testing.T) {
	users := &fakeUserSource{users: []models.User{testUser(1, "a@example.com", 540)}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Water plants", UserID: 1}},
	}}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, todos, mailer, Options{})

	at(t, s, 2026, time.March, 10, 9, 0)
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, mailer.sendCount())

	// Same hour-of-day on the next calendar day.
	at(t, s, 2026, time.March, 11, 9, 0)
	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, mailer.sendCount())
}

func TestTickOutsideNotificationWindow(t *testing.T) {
	users := &fakeUserSource{users: []models.User{testUser(1, "a@example.com", 540)}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Sleep", UserID: 1}},
	}}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, todos, mailer, Options{})

	for _, hour := range []int{0, 3, 6} {
		at(t, s, 2026, time.March, 10, hour, 0)
		sent, err := s.Tick(context.Background())
		require.NoError(t, err)
		assert.Zero(t, sent, "hour %d is outside the window", hour)
	}
	assert.Zero(t, mailer.sendCount())

	// Boundary hours are inclusive.
	at(t, s, 2026, time.March, 10, 7, 0)
	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	at(t, s, 2026, time.March, 10, 23, 0)
	sent, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestTickSkipsUsersWithoutPendingTodos(t *testing.T) {
	users := &fakeUserSource{users: []models.User{
		testUser(1, "busy@example.com", 540),
		testUser(2, "idle@example.com", 540),
	}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Ship release", UserID: 1}},
		2: {},
	}}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, todos, mailer, Options{})

	at(t, s, 2026, time.March, 10, 12, 0)
	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"busy@example.com"}, mailer.sends)
}

func TestTickMarksSlotEvenWhenSendFails(t *testing.T) {
	users := &fakeUserSource{users: []models.User{testUser(1, "a@example.com", 540)}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Call dentist", UserID: 1}},
	}}
	mailer := &fakeMailer{err: errors.New("smtp: connection refused")}
	s := newTestScheduler(t, users, todos, mailer, Options{})

	at(t, s, 2026, time.March, 10, 10, 0)
	_, err := s.Tick(context.Background())
	require.NoError(t, err)

	// No retry within the hour, even though the send failed.
	at(t, s, 2026, time.March, 10, 10, 30)
	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mailer.sendCount())
}

func TestTickLeavesSlotOpenWhenTodoFetchFails(t *testing.T) {
	users := &fakeUserSource{users: []models.User{testUser(1, "a@example.com", 540)}}
	todos := &fakeTodoSource{err: errors.New("db down")}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, todos, mailer, Options{})

	at(t, s, 2026, time.March, 10, 10, 0)
	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	// Recovery within the hour still gets the reminder out.
	todos.err = nil
	todos.todos = map[int64][]models.Todo{1: {{ID: 1, Title: "Retry me", UserID: 1}}}
	sent, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestTickPreferredTimeStrategy(t *testing.T) {
	users := &fakeUserSource{users: []models.User{
		testUser(1, "nine@example.com", 9*60+30),
		testUser(2, "fourteen@example.com", 14*60),
	}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Morning task", UserID: 1}},
		2: {{ID: 2, Title: "Afternoon task", UserID: 2}},
	}}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, todos, mailer, Options{Strategy: StrategyPreferredTime})

	at(t, s, 2026, time.March, 10, 9, 0)
	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"nine@example.com"}, mailer.sends)

	at(t, s, 2026, time.March, 10, 14, 0)
	sent, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"nine@example.com", "fourteen@example.com"}, mailer.sends)
}

func TestTickMailDisabled(t *testing.T) {
	users := &fakeUserSource{users: []models.User{testUser(1, "a@example.com", 540)}}
	todos := &fakeTodoSource{todos: map[int64][]models.Todo{
		1: {{ID: 1, Title: "Never sent", UserID: 1}},
	}}
	mailer := &fakeMailer{}
	s := New(users, todos, mailer, NewMemoryDedupStore(), Options{MailEnabled: false})
	at(t, s, 2026, time.March, 10, 10, 0)

	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, mailer.sendCount())
}

func TestTickUserFetchErrorPropagates(t *testing.T) {
	users := &fakeUserSource{err: errors.New("db down")}
	mailer := &fakeMailer{}
	s := newTestScheduler(t, users, &fakeTodoSource{}, mailer, Options{})
	at(t, s, 2026, time.March, 10, 10, 0)

	_, err := s.Tick(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	users := &fakeUserSource{}
	mailer := &fakeMailer{}
	s := New(users, &fakeTodoSource{}, mailer, NewMemoryDedupStore(), Options{
		MailEnabled:  true,
		WakeInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
