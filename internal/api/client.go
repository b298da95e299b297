// Package api is the HTTP client for the remote boardgame backend. The
// backend itself is an external collaborator; this package only knows its
// endpoint shapes and attaches the bearer token when one exists.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nahin/boardsync/internal/model"
)

// TokenSource supplies the current bearer token. Resolved per request so a
// login or logout mid-session takes effect on the next call.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// StatusError is a non-2xx response. Callers log it and move on — no layer
// of the core retries automatically.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) != "" {
		return fmt.Sprintf("api: status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("api: status %d", e.Code)
}

type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

// New builds a client for the backend at baseURL. tokens may be nil for an
// unauthenticated client (catalog reads work without a token).
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// Configured reports whether a backend endpoint is set at all.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Boardgame fetches one game by id.
func (c *Client) Boardgame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var out model.Game
	if err := c.do(ctx, http.MethodGet, "/boardgames/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllBoardgames fetches the full catalog. The caller overwrites its local
// snapshot wholesale with the result.
func (c *Client) AllBoardgames(ctx context.Context) ([]model.Game, error) {
	var out []model.Game
	if err := c.do(ctx, http.MethodGet, "/recommendations/all-boardgames", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Favorites fetches the backend's view of a user's favorites.
func (c *Client) Favorites(ctx context.Context, userID string) ([]model.Game, error) {
	var out []model.Game
	if err := c.do(ctx, http.MethodGet, "/recommendations/favorites/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type updateStateRequest struct {
	GameID     model.GameID          `json:"gameId"`
	UpdateData model.PreferencePatch `json:"updateData"`
}

// UpdateGameState persists a preference patch remotely. The patch carries
// its LastUpdated stamp so the server could reject out-of-order writes.
func (c *Client) UpdateGameState(ctx context.Context, gameID model.GameID, update model.PreferencePatch) error {
	return c.do(ctx, http.MethodPost, "/api/games/updateState", updateStateRequest{
		GameID:     gameID,
		UpdateData: update,
	}, nil)
}

// PostActivity sends one activity event to the canonical endpoint.
func (c *Client) PostActivity(ctx context.Context, event model.ActivityEvent) error {
	return c.do(ctx, http.MethodPost, "/user/activities", event, nil)
}

// PostAction sends the legacy flat action shape. Only called when the
// legacy mirror is enabled in config.
func (c *Client) PostAction(ctx context.Context, action model.LegacyAction) error {
	return c.do(ctx, http.MethodPost, "/recommendations/actions", action, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.Configured() {
		return fmt.Errorf("api: no base URL configured")
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encoding request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token, ok := c.tokens.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s response: %w", path, err)
	}
	return nil
}
