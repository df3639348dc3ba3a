package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/estevaoantuness/agentefinal/internal/task"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
)

// statusLabels maps internal statuses to the select options used in the
// Notion database.
var statusLabels = map[string]string{
	task.StatusPending:    "Pendente",
	task.StatusInProgress: "Em andamento",
	task.StatusCompleted:  "Concluída",
	task.StatusCancelled:  "Cancelada",
}

// Client mirrors a user's tasks into a Notion database. Pages are keyed
// by the task title plus the owner's channel key, so re-syncing updates
// rather than duplicates.
type Client struct {
	token      string
	databaseID string
	baseURL    string
	httpClient *http.Client
}

func NewClient(token, databaseID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:      token,
		databaseID: databaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SyncTasks upserts every task as a page and returns how many pages
// were written.
func (c *Client) SyncTasks(ctx context.Context, user *task.User, tasks []task.Task) (int, error) {
	if strings.TrimSpace(c.token) == "" || strings.TrimSpace(c.databaseID) == "" {
		return 0, fmt.Errorf("notion token and database id required")
	}

	existing, err := c.pagesByTitle(ctx, user.ChannelKey)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, t := range tasks {
		props := pageProperties(user, t)
		if pageID, ok := existing[t.Title]; ok {
			err = c.updatePage(ctx, pageID, props)
		} else {
			err = c.createPage(ctx, props)
		}
		if err != nil {
			return synced, fmt.Errorf("sync %q: %w", t.Title, err)
		}
		synced++
	}
	log.Printf("[notion] synced %d tasks for %s", synced, user.ChannelKey)
	return synced, nil
}

// pagesByTitle queries the database for the user's pages and returns
// title -> page ID.
func (c *Client) pagesByTitle(ctx context.Context, channelKey string) (map[string]string, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": "Usuário",
			"rich_text": map[string]any{
				"equals": channelKey,
			},
		},
	}

	var decoded struct {
		Results []struct {
			ID         string `json:"id"`
			Properties struct {
				Title struct {
					Title []struct {
						PlainText string `json:"plain_text"`
					} `json:"title"`
				} `json:"Título"`
			} `json:"properties"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/v1/databases/%s/query", c.databaseID)
	if err := c.do(ctx, http.MethodPost, path, body, &decoded); err != nil {
		return nil, fmt.Errorf("query database: %w", err)
	}

	pages := make(map[string]string, len(decoded.Results))
	for _, r := range decoded.Results {
		var title strings.Builder
		for _, t := range r.Properties.Title.Title {
			title.WriteString(t.PlainText)
		}
		if title.Len() > 0 {
			pages[title.String()] = r.ID
		}
	}
	return pages, nil
}

func (c *Client) createPage(ctx context.Context, props map[string]any) error {
	body := map[string]any{
		"parent":     map[string]any{"database_id": c.databaseID},
		"properties": props,
	}
	return c.do(ctx, http.MethodPost, "/v1/pages", body, nil)
}

func (c *Client) updatePage(ctx context.Context, pageID string, props map[string]any) error {
	body := map[string]any{"properties": props}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

func pageProperties(user *task.User, t task.Task) map[string]any {
	props := map[string]any{
		"Título": map[string]any{
			"title": []map[string]any{{
				"text": map[string]any{"content": t.Title},
			}},
		},
		"Status": map[string]any{
			"select": map[string]any{"name": statusLabels[t.Status]},
		},
		"Prioridade": map[string]any{
			"select": map[string]any{"name": t.Priority},
		},
		"Usuário": map[string]any{
			"rich_text": []map[string]any{{
				"text": map[string]any{"content": user.ChannelKey},
			}},
		},
	}
	if t.Category != "" {
		props["Categoria"] = map[string]any{
			"rich_text": []map[string]any{{
				"text": map[string]any{"content": t.Category},
			}},
		}
	}
	return props
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notion http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
