package task

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	UNIQUE(user_id, name)
);
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	priority TEXT NOT NULL DEFAULT 'medium',
	category_id INTEGER REFERENCES categories(id),
	due_date INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
CREATE TABLE IF NOT EXISTS reminders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	message TEXT NOT NULL,
	remind_at INTEGER NOT NULL,
	sent INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureUser returns the user for a channel key (e.g. "whatsapp:5511..."),
// creating it on first contact. A non-empty name refreshes the stored name.
func (s *Store) EnsureUser(channelKey, name string) (*User, error) {
	now := time.Now().Unix()
	if _, err := s.db.Exec(
		`INSERT INTO users (channel_key, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel_key) DO UPDATE SET name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END`,
		channelKey, name, now,
	); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	var u User
	err := s.db.QueryRow(
		`SELECT id, channel_key, name FROM users WHERE channel_key = ?`, channelKey,
	).Scan(&u.ID, &u.ChannelKey, &u.Name)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// ListUsers returns every known user, for the daily digest.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, channel_key, name FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ChannelKey, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateTask(userID int64, title, description, priority string) (*Task, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}

	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO tasks (user_id, title, description, status, priority, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, title, description, StatusPending, priority, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}
	return &Task{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		Priority:    priority,
		CreatedAt:   now,
	}, nil
}

// ListTasks returns the user's tasks in display order (creation order).
// filter may be "all", "", or a concrete status. Positions are assigned
// over the full ordering before filtering, so a task keeps the same
// number whether or not it was listed through a filter.
func (s *Store) ListTasks(userID int64, filter string) ([]Task, error) {
	filtered := filter != "" && filter != "all"
	if filtered && !ValidStatus(filter) {
		return nil, fmt.Errorf("invalid status filter %q", filter)
	}

	rows, err := s.db.Query(`
SELECT t.id, t.user_id, t.title, t.description, t.status, t.priority,
       COALESCE(c.name, ''), t.due_date, t.created_at
FROM tasks t LEFT JOIN categories c ON t.category_id = c.id
WHERE t.user_id = ? ORDER BY t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	pos := 0
	for rows.Next() {
		var t Task
		var due sql.NullInt64
		var created int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category, &due, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		pos++
		t.Position = pos
		if filtered && t.Status != filter {
			continue
		}
		if due.Valid {
			d := time.Unix(due.Int64, 0)
			t.DueDate = &d
		}
		t.CreatedAt = time.Unix(created, 0)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskByPosition resolves a 1-based display position into the task itself.
// Returns nil (no error) when the position is out of range.
func (s *Store) TaskByPosition(userID int64, position int) (*Task, error) {
	if position < 1 {
		return nil, nil
	}
	tasks, err := s.ListTasks(userID, "all")
	if err != nil {
		return nil, err
	}
	if position > len(tasks) {
		return nil, nil
	}
	t := tasks[position-1]
	return &t, nil
}

// UpdateStatus sets the status of the task at a 1-based display position.
// Returns the updated task, or nil when the position is out of range.
func (s *Store) UpdateStatus(userID int64, position int, status string) (*Task, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	t, err := s.TaskByPosition(userID, position)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if _, err := s.db.Exec(`UPDATE tasks SET status = ? WHERE id = ?`, status, t.ID); err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	t.Status = status
	return t, nil
}

// Progress aggregates the user's task counts.
func (s *Store) Progress(userID int64) (*Progress, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}
	defer rows.Close()

	var p Progress
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.Total += count
		switch status {
		case StatusCompleted:
			p.Completed = count
		case StatusInProgress:
			p.InProgress = count
		case StatusPending:
			p.Pending = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if p.Total > 0 {
		p.Percentage = math.Round(float64(p.Completed)/float64(p.Total)*1000) / 10
	}
	return &p, nil
}

// CreateCategory adds a user category; creating an existing one is a no-op.
func (s *Store) CreateCategory(userID int64, name string) error {
	_, err := s.db.Exec(
		`INSERT INTO categories (user_id, name) VALUES (?, ?) ON CONFLICT(user_id, name) DO NOTHING`,
		userID, name,
	)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// AssignCategory links the task at a display position to a category,
// creating the category if needed. Returns the task, or nil when the
// position is out of range.
func (s *Store) AssignCategory(userID int64, position int, category string) (*Task, error) {
	t, err := s.TaskByPosition(userID, position)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if err := s.CreateCategory(userID, category); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(
		`UPDATE tasks SET category_id = (SELECT id FROM categories WHERE user_id = ? AND name = ?) WHERE id = ?`,
		userID, category, t.ID,
	); err != nil {
		return nil, fmt.Errorf("assign category: %w", err)
	}
	t.Category = category
	return t, nil
}

func (s *Store) CreateReminder(userID int64, message string, remindAt time.Time) (*Reminder, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO reminders (user_id, message, remind_at, created_at) VALUES (?, ?, ?, ?)`,
		userID, message, remindAt.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reminder id: %w", err)
	}
	return &Reminder{ID: id, UserID: userID, Message: message, RemindAt: remindAt, CreatedAt: now}, nil
}

// ListReminders returns the user's unsent reminders, soonest first.
func (s *Store) ListReminders(userID int64) ([]Reminder, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, message, remind_at, sent, created_at FROM reminders
		 WHERE user_id = ? AND sent = 0 ORDER BY remind_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var r Reminder
		var remindAt, created int64
		var sent int
		if err := rows.Scan(&r.ID, &r.UserID, &r.Message, &remindAt, &sent, &created); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.RemindAt = time.Unix(remindAt, 0)
		r.Sent = sent != 0
		r.CreatedAt = time.Unix(created, 0)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// DueReminders returns every unsent reminder across all users whose
// time has come.
func (s *Store) DueReminders(now time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, message, remind_at, sent, created_at FROM reminders
		 WHERE sent = 0 AND remind_at <= ? ORDER BY remind_at`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var r Reminder
		var remindAt, created int64
		var sent int
		if err := rows.Scan(&r.ID, &r.UserID, &r.Message, &remindAt, &sent, &created); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.RemindAt = time.Unix(remindAt, 0)
		r.Sent = sent != 0
		r.CreatedAt = time.Unix(created, 0)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkReminderSent flags a reminder as delivered.
func (s *Store) MarkReminderSent(id int64) error {
	if _, err := s.db.Exec(`UPDATE reminders SET sent = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// UserByID loads a user, for reminder delivery.
func (s *Store) UserByID(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, channel_key, name FROM users WHERE id = ?`, id).Scan(&u.ID, &u.ChannelKey, &u.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}
