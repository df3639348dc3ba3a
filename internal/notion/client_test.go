package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/estevaoantuness/agentefinal/internal/task"
)

func TestSyncTasksCreatesAndUpdates(t *testing.T) {
	var created, updated int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("Notion-Version") == "" {
			t.Errorf("missing Notion-Version header")
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/query"):
			// One page already exists, for the task "antiga".
			io.WriteString(w, `{"results": [{"id": "page-1", "properties": {"Título": {"title": [{"plain_text": "antiga"}]}}}]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/pages":
			created++

			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["parent"] == nil {
				t.Errorf("create without parent database")
			}
			io.WriteString(w, `{}`)
		case r.Method == http.MethodPatch && r.URL.Path == "/v1/pages/page-1":
			updated++
			io.WriteString(w, `{}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", "db-1", srv.URL)
	user := &task.User{ID: 1, ChannelKey: "telegram:42", Name: "Maria"}
	tasks := []task.Task{
		{Title: "antiga", Status: task.StatusCompleted, Priority: task.PriorityMedium},
		{Title: "nova", Status: task.StatusPending, Priority: task.PriorityHigh},
	}

	n, err := c.SyncTasks(context.Background(), user, tasks)
	if err != nil {
		t.Fatalf("SyncTasks error: %v", err)
	}
	if n != 2 || created != 1 || updated != 1 {
		t.Errorf("n=%d created=%d updated=%d", n, created, updated)
	}
}

func TestSyncTasksServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message": "invalid token"}`)
	}))
	defer srv.Close()

	c := NewClient("bad", "db-1", srv.URL)
	_, err := c.SyncTasks(context.Background(), &task.User{ChannelKey: "x"}, []task.Task{{Title: "a"}})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v", err)
	}
}

func TestSyncTasksRequiresConfig(t *testing.T) {
	c := NewClient("", "", "")
	if _, err := c.SyncTasks(context.Background(), &task.User{}, nil); err == nil {
		t.Error("expected configuration error")
	}
}
