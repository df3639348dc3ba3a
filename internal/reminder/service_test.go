package reminder

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/estevaoantuness/agentefinal/internal/humanize"
	"github.com/estevaoantuness/agentefinal/internal/task"
)

type capture struct {
	mu    sync.Mutex
	sent  []string
	keys  []string
}

func (c *capture) deliver(channelKey, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, channelKey)
	c.sent = append(c.sent, text)
}

func newTestService(t *testing.T) (*Service, *task.Store, *capture) {
	t.Helper()
	store, err := task.NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	c := &capture{}
	svc := NewService(store, humanize.New(""), c.deliver, Options{DigestHour: 8})
	return svc, store, c
}

func TestFireDue(t *testing.T) {
	svc, store, c := newTestService(t)
	u, _ := store.EnsureUser("telegram:42", "Maria")

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	store.CreateReminder(u.ID, "reunião agora", past)
	store.CreateReminder(u.ID, "consulta depois", future)

	svc.fireDue(time.Now())

	if len(c.sent) != 1 {
		t.Fatalf("sent = %v", c.sent)
	}
	if !strings.Contains(c.sent[0], "reunião agora") || c.keys[0] != "telegram:42" {
		t.Errorf("delivery = %q to %q", c.sent[0], c.keys[0])
	}

	// Fired reminders stay fired.
	svc.fireDue(time.Now())
	if len(c.sent) != 1 {
		t.Errorf("reminder fired twice: %v", c.sent)
	}

	// The future one is still queued.
	left, _ := store.ListReminders(u.ID)
	if len(left) != 1 || left[0].Message != "consulta depois" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestDigestSkipsUsersWithNothingOpen(t *testing.T) {
	svc, store, c := newTestService(t)
	busy, _ := store.EnsureUser("telegram:1", "Maria")
	idle, _ := store.EnsureUser("telegram:2", "João")
	_ = idle

	store.CreateTask(busy.ID, "fazer relatório", "", "")

	svc.sendDigests()

	if len(c.sent) != 1 {
		t.Fatalf("sent = %v", c.sent)
	}
	if c.keys[0] != "telegram:1" || !strings.Contains(c.sent[0], "fazer relatório") {
		t.Errorf("digest = %q to %q", c.sent[0], c.keys[0])
	}
	if !strings.Contains(c.sent[0], "Maria") {
		t.Errorf("digest should greet by name: %q", c.sent[0])
	}
}

func TestDigestNumbersMatchFullOrdering(t *testing.T) {
	svc, store, c := newTestService(t)
	u, _ := store.EnsureUser("telegram:1", "Maria")
	store.CreateTask(u.ID, "a", "", "")
	store.CreateTask(u.ID, "b", "", "")
	store.CreateTask(u.ID, "c", "", "")
	store.UpdateStatus(u.ID, 1, task.StatusCompleted)
	store.UpdateStatus(u.ID, 3, task.StatusInProgress)

	svc.sendDigests()
	if len(c.sent) != 1 {
		t.Fatalf("sent = %v", c.sent)
	}
	got := c.sent[0]

	// Replying "feito N" resolves N against the full list, so the digest
	// must show those numbers even though the completed task is absent.
	if !strings.Contains(got, "2. ⏳") || !strings.Contains(got, "3. 🔄") {
		t.Errorf("digest should keep full-list numbers:\n%s", got)
	}
	if strings.Contains(got, "1. ") {
		t.Errorf("completed task's number must not be reused:\n%s", got)
	}
	if strings.Index(got, "2. ") > strings.Index(got, "3. ") {
		t.Errorf("digest lines out of order:\n%s", got)
	}
}

func TestDigestDoneUserGetsNothing(t *testing.T) {
	svc, store, c := newTestService(t)
	u, _ := store.EnsureUser("telegram:1", "Maria")
	store.CreateTask(u.ID, "a", "", "")
	store.UpdateStatus(u.ID, 1, task.StatusCompleted)

	svc.sendDigests()
	if len(c.sent) != 0 {
		t.Errorf("all-done user should not be pinged: %v", c.sent)
	}
}

func TestStartStop(t *testing.T) {
	svc, store, c := newTestService(t)
	svc.interval = 10 * time.Millisecond

	u, _ := store.EnsureUser("telegram:42", "Maria")
	store.CreateReminder(u.ID, "agora", time.Now().Add(-time.Second))

	if err := svc.Start(t.Context()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.sent)
		c.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("due reminder was not delivered by the tick loop")
}
