package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// maxErrorBody caps how much of an error response ends up in an error message
const maxErrorBody = 512

// Client talks to the game service's request/response API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new game service client.
// baseURL includes the API prefix, e.g. http://localhost:8080/api/v1
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("game service returned %d", e.Code)
	}
	return fmt.Sprintf("game service returned %d: %s", e.Code, e.Body)
}

// GetGame fetches the current snapshot of a game
func (c *Client) GetGame(ctx context.Context, gameID int) (*domain.Game, error) {
	var game domain.Game
	if err := c.do(ctx, http.MethodGet, "/games/"+strconv.Itoa(gameID), nil, &game); err != nil {
		return nil, fmt.Errorf("get game %d: %w", gameID, notFound(err))
	}
	if game.BoardSize == 0 {
		game.BoardSize = domain.DefaultBoardSize
	}
	return &game, nil
}

// ListMoves fetches the ordered move history of a game
func (c *Client) ListMoves(ctx context.Context, gameID int) ([]domain.Move, error) {
	var moves []domain.Move
	if err := c.do(ctx, http.MethodGet, "/games/"+strconv.Itoa(gameID)+"/moves", nil, &moves); err != nil {
		return nil, fmt.Errorf("list moves of game %d: %w", gameID, notFound(err))
	}
	return moves, nil
}

// Login exchanges credentials for a session token
func (c *Client) Login(ctx context.Context, username, password string) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	req := domain.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// notFound maps a 404 from a game endpoint to domain.ErrGameNotFound
func notFound(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrGameNotFound, err)
	}
	return err
}
