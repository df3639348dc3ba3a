package task

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnsureUser(t *testing.T) {
	store := newTestStore(t)

	u1, err := store.EnsureUser("whatsapp:5511999", "Maria")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	u2, err := store.EnsureUser("whatsapp:5511999", "")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	if u1.ID != u2.ID {
		t.Errorf("same channel key should map to same user: %d vs %d", u1.ID, u2.ID)
	}
	if u2.Name != "Maria" {
		t.Errorf("empty name must not overwrite stored name, got %q", u2.Name)
	}

	u3, err := store.EnsureUser("whatsapp:5511999", "Maria Clara")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	if u3.Name != "Maria Clara" {
		t.Errorf("name should refresh, got %q", u3.Name)
	}
}

func TestCreateAndListTasks(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")

	if _, err := store.CreateTask(u.ID, "comprar leite", "", ""); err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	if _, err := store.CreateTask(u.ID, "fazer relatório", "até sexta", PriorityHigh); err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}

	tasks, err := store.ListTasks(u.ID, "all")
	if err != nil {
		t.Fatalf("ListTasks error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].Title != "comprar leite" || tasks[1].Title != "fazer relatório" {
		t.Errorf("tasks out of display order: %+v", tasks)
	}
	if tasks[0].Priority != PriorityMedium {
		t.Errorf("default priority = %q, want medium", tasks[0].Priority)
	}
}

func TestListTasksFilter(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")

	store.CreateTask(u.ID, "a", "", "")
	store.CreateTask(u.ID, "b", "", "")
	if _, err := store.UpdateStatus(u.ID, 1, StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	pending, err := store.ListTasks(u.ID, StatusPending)
	if err != nil {
		t.Fatalf("ListTasks error: %v", err)
	}
	if len(pending) != 1 || pending[0].Title != "b" {
		t.Errorf("pending = %+v, want only b", pending)
	}

	if _, err := store.ListTasks(u.ID, "bogus"); err == nil {
		t.Error("invalid filter should error")
	}
}

func TestFilteredPositionsStayGlobal(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")
	store.CreateTask(u.ID, "a", "", "")
	store.CreateTask(u.ID, "b", "", "")
	store.CreateTask(u.ID, "c", "", "")
	if _, err := store.UpdateStatus(u.ID, 1, StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	pending, err := store.ListTasks(u.ID, StatusPending)
	if err != nil {
		t.Fatalf("ListTasks error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].Position != 2 || pending[1].Position != 3 {
		t.Errorf("positions = %d, %d, want 2, 3", pending[0].Position, pending[1].Position)
	}

	// The number shown for a filtered task must land on that task.
	got, err := store.UpdateStatus(u.ID, pending[0].Position, StatusInProgress)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if got == nil || got.Title != "b" {
		t.Errorf("task = %+v, want b", got)
	}
}

func TestUpdateStatusByPosition(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")
	store.CreateTask(u.ID, "a", "", "")
	store.CreateTask(u.ID, "b", "", "")

	task, err := store.UpdateStatus(u.ID, 2, StatusInProgress)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if task == nil || task.Title != "b" || task.Status != StatusInProgress {
		t.Errorf("task = %+v", task)
	}

	// Out-of-range position is not an error, just absent.
	task, err = store.UpdateStatus(u.ID, 999, StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil for out-of-range position, got %+v", task)
	}
}

func TestProgress(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")
	store.CreateTask(u.ID, "a", "", "")
	store.CreateTask(u.ID, "b", "", "")
	store.CreateTask(u.ID, "c", "", "")
	store.UpdateStatus(u.ID, 1, StatusCompleted)
	store.UpdateStatus(u.ID, 2, StatusInProgress)

	p, err := store.Progress(u.ID)
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if p.Total != 3 || p.Completed != 1 || p.InProgress != 1 || p.Pending != 1 {
		t.Errorf("progress = %+v", p)
	}
	if p.Percentage != 33.3 {
		t.Errorf("percentage = %v, want 33.3", p.Percentage)
	}
}

func TestProgressEmpty(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")

	p, err := store.Progress(u.ID)
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if p.Total != 0 || p.Percentage != 0 {
		t.Errorf("progress = %+v, want zeros", p)
	}
}

func TestCategories(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")
	store.CreateTask(u.ID, "a", "", "")

	task, err := store.AssignCategory(u.ID, 1, "trabalho")
	if err != nil {
		t.Fatalf("AssignCategory error: %v", err)
	}
	if task == nil || task.Category != "trabalho" {
		t.Errorf("task = %+v", task)
	}

	tasks, _ := store.ListTasks(u.ID, "all")
	if tasks[0].Category != "trabalho" {
		t.Errorf("category not persisted: %+v", tasks[0])
	}

	// Duplicate category creation is a no-op.
	if err := store.CreateCategory(u.ID, "trabalho"); err != nil {
		t.Errorf("CreateCategory duplicate error: %v", err)
	}
}

func TestReminders(t *testing.T) {
	store := newTestStore(t)
	u, _ := store.EnsureUser("u1", "Maria")

	at := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	r, err := store.CreateReminder(u.ID, "reunião com cliente", at)
	if err != nil {
		t.Fatalf("CreateReminder error: %v", err)
	}

	reminders, err := store.ListReminders(u.ID)
	if err != nil {
		t.Fatalf("ListReminders error: %v", err)
	}
	if len(reminders) != 1 || !reminders[0].RemindAt.Equal(at) {
		t.Errorf("reminders = %+v", reminders)
	}

	if err := store.MarkReminderSent(r.ID); err != nil {
		t.Fatalf("MarkReminderSent error: %v", err)
	}
	reminders, _ = store.ListReminders(u.ID)
	if len(reminders) != 0 {
		t.Errorf("sent reminder should be excluded, got %+v", reminders)
	}
}

func TestUsersIsolated(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.EnsureUser("a", "A")
	b, _ := store.EnsureUser("b", "B")
	store.CreateTask(a.ID, "da maria", "", "")

	tasks, _ := store.ListTasks(b.ID, "all")
	if len(tasks) != 0 {
		t.Errorf("user b should see no tasks, got %+v", tasks)
	}
}
