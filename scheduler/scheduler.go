package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/lakonic/taskdeck/delivery"
	"github.com/lakonic/taskdeck/models"
)

// Strategy decides which hours a user is eligible for a reminder.
type Strategy string

const (
	// StrategyEveryHour sends to every user with pending todos in every
	// eligible hour, once per hour.
	StrategyEveryHour Strategy = "every-hour"
	// StrategyPreferredTime sends only during the hour of the user's
	// configured reminder time.
	StrategyPreferredTime Strategy = "preferred-time"
)

// Reminders are only sent between these hours, inclusive.
const (
	windowStartHour = 7
	windowEndHour   = 23
)

const DefaultWakeInterval = 60 * time.Second

// UserSource lists users that can receive reminder mail.
type UserSource interface {
	GetUsersWithEmail(ctx context.Context) ([]models.User, error)
}

// TodoSource lists a user's incomplete todos, newest first.
type TodoSource interface {
	GetIncompleteTodos(ctx context.Context, userID int64) ([]models.Todo, error)
}

// Options configures a Scheduler.
type Options struct {
	Strategy     Strategy
	WakeInterval time.Duration
	AppURL       string // linked from the reminder mail body
	MailEnabled  bool
}

// Scheduler runs the recurring reminder loop. On each wake it determines
// which users are due for a reminder at the current wall-clock hour and
// notifies each (date, user, hour) slot at most once.
type Scheduler struct {
	users   UserSource
	todos   TodoSource
	mailer  delivery.Mailer
	dedup   DedupStore
	opts    Options
	nowFunc func() time.Time

	tickMu     sync.Mutex // iterations never overlap
	currentDay string
}

// New creates a new Scheduler with all required dependencies.
func New(users UserSource, todos TodoSource, mailer delivery.Mailer, dedup DedupStore, opts Options) *Scheduler {
	if opts.Strategy == "" {
		opts.Strategy = StrategyEveryHour
	}
	if opts.WakeInterval <= 0 {
		opts.WakeInterval = DefaultWakeInterval
	}
	return &Scheduler{
		users:   users,
		todos:   todos,
		mailer:  mailer,
		dedup:   dedup,
		opts:    opts,
		nowFunc: time.Now,
	}
}

// Run executes the loop until ctx is cancelled. A tick fully completes,
// including all mail sends, before the next wait begins; a slow transport
// therefore delays the next wake.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("INFO (Scheduler): Reminder loop started (interval %s, strategy %s)",
		s.opts.WakeInterval, s.opts.Strategy)

	ticker := time.NewTicker(s.opts.WakeInterval)
	defer ticker.Stop()

	for {
		if sent, err := s.Tick(ctx); err != nil {
			log.Printf("ERROR (Scheduler): Tick failed: %v", err)
		} else if sent > 0 {
			log.Printf("INFO (Scheduler): Sent %d reminder(s)", sent)
		}

		select {
		case <-ctx.Done():
			log.Println("INFO (Scheduler): Reminder loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// HandleTick is an HTTP handler that triggers a single scheduler cycle.
// Used by external cron services or manual curl requests.
func (s *Scheduler) HandleTick(w http.ResponseWriter, r *http.Request) {
	log.Println("INFO (Scheduler): Tick triggered via HTTP")

	sent, err := s.Tick(r.Context())
	if err != nil {
		log.Printf("ERROR (Scheduler): Tick failed: %v", err)
		http.Error(w, "scheduler tick failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK: sent %d reminders", sent)
}

// Tick runs a single wake: reset dedup state on date rollover, bail outside
// the notification window, then attempt each due user once. Returns the
// number of reminder sends attempted.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if !s.opts.MailEnabled {
		return 0, nil
	}

	now := s.nowFunc()
	today := now.Format(models.DateLayout)
	hour := now.Hour()

	if today != s.currentDay {
		// Daily reset. Dedup state does not survive a date rollover or a
		// process restart.
		s.dedup.Clear()
		s.currentDay = today
		log.Printf("INFO (Scheduler): New day %s, dedup state reset", today)
	}

	if hour < windowStartHour || hour > windowEndHour {
		return 0, nil
	}

	users, err := s.users.GetUsersWithEmail(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch users for reminders: %w", err)
	}

	sent := 0
	for i := range users {
		if s.remindUser(ctx, &users[i], today, hour) {
			sent++
		}
	}
	return sent, nil
}

// remindUser attempts one user's reminder for the current slot. Returns
// true when a send was attempted. The slot is marked whether or not the
// transport succeeded: at most one attempt per slot, no retry within the
// hour, the next day or hour reopens it.
func (s *Scheduler) remindUser(ctx context.Context, user *models.User, today string, hour int) bool {
	if !s.eligible(user, hour) {
		return false
	}

	slot := Slot{Date: today, UserID: user.ID, Hour: hour}
	if s.dedup.Seen(slot) {
		return false
	}

	todos, err := s.todos.GetIncompleteTodos(ctx, user.ID)
	if err != nil {
		// Read failure: leave the slot open so the next wake retries.
		log.Printf("ERROR (Scheduler): Failed to fetch todos for user %d: %v", user.ID, err)
		return false
	}
	if len(todos) == 0 {
		return false
	}

	titles := make([]string, len(todos))
	for i, todo := range todos {
		titles[i] = todo.Title
	}

	body, err := delivery.RenderReminderEmail(user.Username, titles, s.opts.AppURL)
	if err != nil {
		log.Printf("ERROR (Scheduler): Failed to render reminder for user %d: %v", user.ID, err)
		return false
	}

	subject := fmt.Sprintf("Todo Reminder - %s", today)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		log.Printf("ERROR (Scheduler): Failed to send reminder to %s: %v", user.Email, err)
	} else {
		log.Printf("INFO (Scheduler): Reminder sent to user %s for hour %02d:00", user.Username, hour)
	}

	s.dedup.Mark(slot)
	return true
}

func (s *Scheduler) eligible(user *models.User, hour int) bool {
	switch s.opts.Strategy {
	case StrategyPreferredTime:
		return user.ReminderHour() == hour
	default:
		return true
	}
}
