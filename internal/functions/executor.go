package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/estevaoantuness/agentefinal/internal/humanize"
	"github.com/estevaoantuness/agentefinal/internal/nlp"
	"github.com/estevaoantuness/agentefinal/internal/task"
)

// Result is the envelope every tool execution returns. It is what gets
// marshalled back to the model as the tool message, and what the direct
// dispatch path reads the reply from.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON renders the envelope for a tool message. Marshal errors collapse
// into an error envelope rather than propagating.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success": false, "error": "internal marshal failure"}`
	}
	return string(b)
}

// Message extracts the user-facing text a handler attached to its data.
func (r Result) Message() string {
	if m, ok := r.Data.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return ""
}

// NotionSyncer pushes a user's tasks to an external Notion database.
type NotionSyncer interface {
	SyncTasks(ctx context.Context, user *task.User, tasks []task.Task) (int, error)
}

// Executor runs registered tools against the task store.
type Executor struct {
	store  *task.Store
	human  *humanize.Humanizer
	notion NotionSyncer
	clock  func() time.Time
}

func NewExecutor(store *task.Store, human *humanize.Humanizer, notion NotionSyncer) *Executor {
	return &Executor{store: store, human: human, notion: notion, clock: time.Now}
}

// Execute runs one tool call for a user. It never panics: handler
// panics are recovered into an error envelope so a single bad call
// cannot take the pipeline down.
func (e *Executor) Execute(ctx context.Context, user *task.User, name string, args map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[functions] panic in %s: %v", name, r)
			res = Result{Success: false, Error: fmt.Sprintf("internal error executing %s", name)}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}

	switch name {
	case "view_tasks":
		return e.viewTasks(user, args)
	case "create_task":
		return e.createTask(user, args)
	case "mark_done":
		return e.markStatus(user, args, task.StatusCompleted)
	case "mark_progress":
		return e.markStatus(user, args, task.StatusInProgress)
	case "view_progress":
		return e.viewProgress(user)
	case "get_help":
		return e.help()
	case "set_reminder":
		return e.setReminder(user, args)
	case "list_reminders":
		return e.listReminders(user)
	case "create_category":
		return e.createCategory(user, args)
	case "assign_category":
		return e.assignCategory(user, args)
	case "sync_notion":
		return e.syncNotion(ctx, user)
	default:
		return Result{Success: false, Error: fmt.Sprintf("unknown function %q", name)}
	}
}

func (e *Executor) viewTasks(user *task.User, args map[string]any) Result {
	filter, _ := args["filter_status"].(string)
	if filter == "" {
		filter = "all"
	}
	tasks, err := e.store.ListTasks(user.ID, filter)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if len(tasks) == 0 {
		return Result{Success: true, Data: map[string]any{
			"tasks":   []task.Task{},
			"message": e.human.Pick(humanize.EventEmptyList),
		}}
	}
	return Result{Success: true, Data: map[string]any{
		"tasks":   tasks,
		"message": humanize.FormatTaskList(tasks),
	}}
}

func (e *Executor) createTask(user *task.User, args map[string]any) Result {
	title, _ := args["title"].(string)
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{Success: false, Error: "missing required field: title"}
	}
	description, _ := args["description"].(string)
	priority, _ := args["priority"].(string)

	t, err := e.store.CreateTask(user.ID, title, description, priority)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Data: map[string]any{
		"task":    t,
		"message": e.human.Pick(humanize.EventTaskCreated, t.Title),
	}}
}

func (e *Executor) markStatus(user *task.User, args map[string]any, status string) Result {
	numbers := toIntSlice(args["task_numbers"])
	if len(numbers) == 0 {
		return Result{Success: false, Error: "missing required field: task_numbers"}
	}

	event := humanize.EventTaskDone
	if status == task.StatusInProgress {
		event = humanize.EventTaskStarted
	}

	var lines []string
	var updated []task.Task
	var notFound []int
	for _, n := range numbers {
		t, err := e.store.UpdateStatus(user.ID, n, status)
		if err != nil {
			return Result{Success: false, Error: err.Error()}
		}
		if t == nil {
			notFound = append(notFound, n)
			lines = append(lines, fmt.Sprintf("Tarefa %d não encontrada.", n))
			continue
		}
		updated = append(updated, *t)
		lines = append(lines, e.human.Pick(event, t.Title))
	}

	if status == task.StatusCompleted && len(updated) > 0 {
		if p, err := e.store.Progress(user.ID); err == nil && p.Total > 0 && p.Completed == p.Total {
			lines = append(lines, e.human.Pick(humanize.EventAllDone))
		}
	}

	return Result{Success: true, Data: map[string]any{
		"updated":   updated,
		"not_found": notFound,
		"message":   strings.Join(lines, "\n"),
	}}
}

func (e *Executor) viewProgress(user *task.User) Result {
	p, err := e.store.Progress(user.ID)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Data: map[string]any{
		"progress": p,
		"message":  humanize.FormatProgress(p),
	}}
}

func (e *Executor) help() Result {
	msg := strings.Join([]string{
		"Sou a Pangeia, sua assistente de tarefas! Você pode me pedir:",
		"",
		"📋 \"minhas tarefas\" — ver sua lista",
		"➕ \"criar tarefa: comprar leite\" — adicionar tarefa",
		"✅ \"feito 1 2\" — concluir tarefas pelos números",
		"🔄 \"comecei a 3\" — marcar em andamento",
		"📊 \"meu progresso\" — acompanhar o avanço",
		"⏰ \"me lembra de X amanhã às 9h\" — agendar lembrete",
	}, "\n")
	return Result{Success: true, Data: map[string]any{"message": msg}}
}

func (e *Executor) setReminder(user *task.User, args map[string]any) Result {
	message, _ := args["message"].(string)
	message = strings.TrimSpace(message)
	if message == "" {
		return Result{Success: false, Error: "missing required field: message"}
	}
	when, _ := args["when"].(string)

	now := e.clock()
	at := nlp.ParseWhen(when, now)
	if at.IsZero() {
		return Result{Success: false, Error: fmt.Sprintf("could not understand when: %q", when)}
	}
	if !at.After(now) {
		return Result{Success: false, Error: "reminder time is in the past"}
	}

	r, err := e.store.CreateReminder(user.ID, message, at)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Data: map[string]any{
		"reminder": r,
		"message":  e.human.Pick(humanize.EventReminderSet, message, at.Format("02/01 às 15:04")),
	}}
}

func (e *Executor) listReminders(user *task.User) Result {
	reminders, err := e.store.ListReminders(user.ID)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if len(reminders) == 0 {
		return Result{Success: true, Data: map[string]any{
			"reminders": []task.Reminder{},
			"message":   "Você não tem lembretes pendentes.",
		}}
	}
	var b strings.Builder
	b.WriteString("⏰ Seus lembretes:\n")
	for i, r := range reminders {
		fmt.Fprintf(&b, "\n%d. %s — %s", i+1, r.Message, r.RemindAt.Format("02/01 às 15:04"))
	}
	return Result{Success: true, Data: map[string]any{
		"reminders": reminders,
		"message":   b.String(),
	}}
}

func (e *Executor) createCategory(user *task.User, args map[string]any) Result {
	name, _ := args["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{Success: false, Error: "missing required field: name"}
	}
	if err := e.store.CreateCategory(user.ID, name); err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Data: map[string]any{
		"message": fmt.Sprintf("Categoria %q criada!", name),
	}}
}

func (e *Executor) assignCategory(user *task.User, args map[string]any) Result {
	number := toInt(args["task_number"])
	category, _ := args["category"].(string)
	category = strings.TrimSpace(category)
	if number < 1 || category == "" {
		return Result{Success: false, Error: "missing required fields: task_number, category"}
	}
	t, err := e.store.AssignCategory(user.ID, number, category)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if t == nil {
		return Result{Success: true, Data: map[string]any{
			"message": fmt.Sprintf("Tarefa %d não encontrada.", number),
		}}
	}
	return Result{Success: true, Data: map[string]any{
		"task":    t,
		"message": fmt.Sprintf("Tarefa %q agora está em %q.", t.Title, category),
	}}
}

func (e *Executor) syncNotion(ctx context.Context, user *task.User) Result {
	if e.notion == nil {
		return Result{Success: false, Error: "notion sync is not configured"}
	}
	tasks, err := e.store.ListTasks(user.ID, "all")
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	n, err := e.notion.SyncTasks(ctx, user, tasks)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("notion sync: %v", err)}
	}
	return Result{Success: true, Data: map[string]any{
		"synced":  n,
		"message": fmt.Sprintf("Sincronizei %d tarefa(s) com o Notion!", n),
	}}
}

// toIntSlice coerces the task_numbers argument, which arrives as
// []float64 from JSON, []int from the matcher, or the occasional
// stringly-typed list from a confused model.
func toIntSlice(v any) []int {
	switch vv := v.(type) {
	case []int:
		return vv
	case []any:
		var out []int
		for _, item := range vv {
			if n := toInt(item); n != 0 {
				out = append(out, n)
			}
		}
		return out
	case []float64:
		out := make([]int, 0, len(vv))
		for _, f := range vv {
			out = append(out, int(f))
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	default:
		return 0
	}
}
