package functions

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/estevaoantuness/agentefinal/internal/humanize"
	"github.com/estevaoantuness/agentefinal/internal/task"
)

func newTestExecutor(t *testing.T) (*Executor, *task.User) {
	t.Helper()
	store, err := task.NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	user, err := store.EnsureUser("test:1", "Maria")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	return NewExecutor(store, humanize.New(""), nil), user
}

func TestCreateTask(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "create_task", map[string]any{"title": "comprar leite"})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Message(), "comprar leite") {
		t.Errorf("message = %q", res.Message())
	}
}

func TestCreateTaskMissingTitle(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "create_task", map[string]any{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "title") {
		t.Errorf("error should name the missing field, got %q", res.Error)
	}
}

func TestViewTasks(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "b"})

	res := e.Execute(context.Background(), u, "view_tasks", map[string]any{"filter_status": "all"})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	msg := res.Message()
	if !strings.Contains(msg, "1.") || !strings.Contains(msg, "2.") {
		t.Errorf("message should number the tasks: %q", msg)
	}
}

func TestViewTasksEmpty(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "view_tasks", nil)
	if !res.Success || res.Message() == "" {
		t.Errorf("empty list should still answer something: %+v", res)
	}
}

func TestMarkDoneMixedHits(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "b"})

	res := e.Execute(context.Background(), u, "mark_done", map[string]any{
		"task_numbers": []any{float64(1), float64(999)},
	})
	if !res.Success {
		t.Fatalf("partial misses must not fail the call: %+v", res)
	}
	if !strings.Contains(res.Message(), "Tarefa 999 não encontrada.") {
		t.Errorf("message should flag the miss in Portuguese: %q", res.Message())
	}
	data := res.Data.(map[string]any)
	if nf := data["not_found"].([]int); len(nf) != 1 || nf[0] != 999 {
		t.Errorf("not_found = %v", nf)
	}
}

func TestMarkDoneIdempotent(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})

	first := e.Execute(context.Background(), u, "mark_done", map[string]any{"task_numbers": []int{1}})
	second := e.Execute(context.Background(), u, "mark_done", map[string]any{"task_numbers": []int{1}})
	if !first.Success || !second.Success {
		t.Errorf("repeating mark_done must stay successful: %+v / %+v", first, second)
	}
}

func TestMarkDoneAllCompleteCelebrates(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})

	res := e.Execute(context.Background(), u, "mark_done", map[string]any{"task_numbers": []int{1}})
	if !strings.Contains(res.Message(), "🎉") {
		t.Errorf("finishing everything should celebrate: %q", res.Message())
	}
}

func TestMarkProgress(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})

	res := e.Execute(context.Background(), u, "mark_progress", map[string]any{"task_numbers": []int{1}})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	view := e.Execute(context.Background(), u, "view_tasks", map[string]any{"filter_status": "in_progress"})
	if !strings.Contains(view.Message(), "a") {
		t.Errorf("task should now be in progress: %q", view.Message())
	}
}

func TestViewTasksFilteredKeepsNumbers(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "b"})
	e.Execute(context.Background(), u, "mark_done", map[string]any{"task_numbers": []int{1}})

	view := e.Execute(context.Background(), u, "view_tasks", map[string]any{"filter_status": "pending"})
	// "b" is second in the full list; the filtered view must still call
	// it 2 so a follow-up "feito 2" lands on it.
	if !strings.Contains(view.Message(), "2. ") {
		t.Errorf("filtered view lost the full-list number: %q", view.Message())
	}
	if strings.Contains(view.Message(), "1. ") {
		t.Errorf("filtered view renumbered from 1: %q", view.Message())
	}
}

func TestViewProgress(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "b"})
	e.Execute(context.Background(), u, "mark_done", map[string]any{"task_numbers": []int{1}})

	res := e.Execute(context.Background(), u, "view_progress", nil)
	if !res.Success || !strings.Contains(res.Message(), "50.0%") {
		t.Errorf("result = %+v", res)
	}
}

func TestGetHelp(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "get_help", nil)
	if !res.Success || !strings.Contains(res.Message(), "minhas tarefas") {
		t.Errorf("result = %+v", res)
	}
}

func TestSetAndListReminders(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "set_reminder", map[string]any{
		"message": "reunião com cliente",
		"when":    "em 2 horas",
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	list := e.Execute(context.Background(), u, "list_reminders", nil)
	if !list.Success || !strings.Contains(list.Message(), "reunião com cliente") {
		t.Errorf("result = %+v", list)
	}
}

func TestSetReminderBadWhen(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "set_reminder", map[string]any{
		"message": "x",
		"when":    "sei lá",
	})
	if res.Success {
		t.Errorf("unparseable time should fail: %+v", res)
	}
}

func TestCategories(t *testing.T) {
	e, u := newTestExecutor(t)
	e.Execute(context.Background(), u, "create_task", map[string]any{"title": "a"})

	res := e.Execute(context.Background(), u, "assign_category", map[string]any{
		"task_number": float64(1),
		"category":    "trabalho",
	})
	if !res.Success || !strings.Contains(res.Message(), "trabalho") {
		t.Errorf("result = %+v", res)
	}
}

func TestUnknownFunction(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "launch_rocket", nil)
	if res.Success || !strings.Contains(res.Error, "launch_rocket") {
		t.Errorf("result = %+v", res)
	}
}

func TestPanicRecovered(t *testing.T) {
	e, _ := newTestExecutor(t)
	// A nil user makes every handler dereference panic.
	res := e.Execute(context.Background(), nil, "view_tasks", nil)
	if res.Success || res.Error == "" {
		t.Errorf("panic should become an error envelope: %+v", res)
	}
}

func TestSyncNotionUnconfigured(t *testing.T) {
	e, u := newTestExecutor(t)
	res := e.Execute(context.Background(), u, "sync_notion", nil)
	if res.Success || !strings.Contains(res.Error, "notion") {
		t.Errorf("result = %+v", res)
	}
}

func TestResultJSONRoundTrip(t *testing.T) {
	res := Result{Success: true, Data: map[string]any{"message": "oi"}}
	var back Result
	if err := json.Unmarshal([]byte(res.JSON()), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Success || back.Message() != "oi" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestNamesCoverDefinitions(t *testing.T) {
	names := Names()
	if len(names) != len(Definitions) {
		t.Fatalf("len mismatch")
	}
	seen := map[string]bool{}
	for _, n := range names {
		if n == "" || seen[n] {
			t.Errorf("bad or duplicate tool name %q", n)
		}
		seen[n] = true
	}
}
