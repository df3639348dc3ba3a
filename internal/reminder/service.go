package reminder

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/estevaoantuness/agentefinal/internal/humanize"
	"github.com/estevaoantuness/agentefinal/internal/task"
)

// Deliver pushes one message to a user, addressed by the channel key
// stored with the user record ("telegram:12345").
type Deliver func(channelKey, text string)

// Service fires due reminders and the optional morning digest.
// Reminders come out of the task store; the digest runs on a cron
// schedule in the configured timezone.
type Service struct {
	store   *task.Store
	human   *humanize.Humanizer
	deliver Deliver

	digestEnabled bool
	digestHour    int
	loc           *time.Location
	interval      time.Duration

	cron   *rcron.Cron
	mu     sync.Mutex
	cancel context.CancelFunc
}

type Options struct {
	DigestEnabled bool
	DigestHour    int
	Location      *time.Location
	// PollInterval is how often due reminders are checked. Zero means
	// every 30 seconds.
	PollInterval time.Duration
}

func NewService(store *task.Store, human *humanize.Humanizer, deliver Deliver, opts Options) *Service {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:         store,
		human:         human,
		deliver:       deliver,
		digestEnabled: opts.DigestEnabled,
		digestHour:    opts.DigestHour,
		loc:           loc,
		interval:      interval,
	}
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.digestEnabled {
		s.cron = rcron.New(rcron.WithLocation(s.loc))
		expr := fmt.Sprintf("0 %d * * *", s.digestHour)
		if _, err := s.cron.AddFunc(expr, s.sendDigests); err != nil {
			cancel()
			return fmt.Errorf("register digest: %w", err)
		}
		s.cron.Start()
		log.Printf("[reminder] daily digest scheduled at %02d:00 %s", s.digestHour, s.loc)
	}

	go s.tickLoop(runCtx)
	log.Printf("[reminder] started, polling every %s", s.interval)
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	log.Printf("[reminder] stopped")
}

func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fireDue(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// fireDue delivers every due reminder and marks it sent. A reminder is
// only marked after delivery was attempted, so a crash re-delivers
// rather than drops.
func (s *Service) fireDue(now time.Time) {
	due, err := s.store.DueReminders(now)
	if err != nil {
		log.Printf("[reminder] due query failed: %v", err)
		return
	}

	for _, r := range due {
		user, err := s.store.UserByID(r.UserID)
		if err != nil || user == nil {
			log.Printf("[reminder] no user %d for reminder %d", r.UserID, r.ID)
			_ = s.store.MarkReminderSent(r.ID)
			continue
		}

		s.deliver(user.ChannelKey, s.human.Pick(humanize.EventReminderFire, r.Message))
		if err := s.store.MarkReminderSent(r.ID); err != nil {
			log.Printf("[reminder] mark sent %d: %v", r.ID, err)
		}
	}
}

// sendDigests pushes the morning summary to every user who has
// anything open.
func (s *Service) sendDigests() {
	users, err := s.store.ListUsers()
	if err != nil {
		log.Printf("[reminder] digest user list failed: %v", err)
		return
	}

	for _, u := range users {
		text, err := s.buildDigest(&u)
		if err != nil {
			log.Printf("[reminder] digest for %s failed: %v", u.ChannelKey, err)
			continue
		}
		if text == "" {
			continue
		}
		s.deliver(u.ChannelKey, text)
	}
	log.Printf("[reminder] digest round finished for %d users", len(users))
}

func (s *Service) buildDigest(u *task.User) (string, error) {
	open, err := s.store.ListTasks(u.ID, task.StatusPending)
	if err != nil {
		return "", err
	}
	inProgress, err := s.store.ListTasks(u.ID, task.StatusInProgress)
	if err != nil {
		return "", err
	}
	if len(open)+len(inProgress) == 0 {
		return "", nil
	}

	p, err := s.store.Progress(u.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	name := u.Name
	if name == "" {
		name = "tudo bem"
	}
	fmt.Fprintf(&b, "Bom dia, %s! ☀️\n\n", name)
	fmt.Fprintf(&b, "Você tem %d tarefa(s) aberta(s) hoje:\n", len(open)+len(inProgress))
	// Numbers in the digest are full-list positions, so a "feito N" reply
	// lands on the task shown. Sort so they read in order.
	combined := append(inProgress, open...)
	sort.Slice(combined, func(i, j int) bool { return combined[i].Position < combined[j].Position })
	b.WriteString(humanize.FormatTaskList(combined))
	b.WriteString("\n\n")
	b.WriteString(humanize.Motivate(p.Percentage))
	return b.String(), nil
}
