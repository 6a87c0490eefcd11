package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
	"github.com/mmuslimabdulj/goban-live/internal/usecase"
	"github.com/mmuslimabdulj/goban-live/view/board"
)

// Snapshotter is the part of a game view the preview reads from
type Snapshotter interface {
	Snapshot(ctx context.Context) (usecase.ViewSnapshot, error)
}

// PreviewHandler serves the live board of one view over HTTP
type PreviewHandler struct {
	view Snapshotter
}

func NewPreviewHandler(view Snapshotter) *PreviewHandler {
	return &PreviewHandler{view: view}
}

// Routes registers the preview endpoints
func (h *PreviewHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /board.svg", h.HandleBoard)
	mux.HandleFunc("GET /state", h.HandleState)
	return mux
}

// HandleBoard renders the current board as SVG
func (h *PreviewHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.view.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "View unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	if snap.Board == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "image/svg+xml")
	}
	board.SVG(snap.Board).Render(r.Context(), w)
}

type stoneJSON struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

type stateJSON struct {
	Game      *domain.Game `json:"game"`
	Ready     bool         `json:"ready"`
	MoveCount int          `json:"move_count"`
	Pending   int          `json:"pending"`
	AuthError string       `json:"auth_error,omitempty"`
	Stones    []stoneJSON  `json:"stones"`
}

// HandleState returns the current game snapshot and stones as JSON
func (h *PreviewHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.view.Snapshot(r.Context())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	out := stateJSON{
		Game:      snap.Game,
		Pending:   snap.Pending,
		AuthError: snap.AuthError,
		Stones:    []stoneJSON{},
	}
	if snap.Board != nil {
		out.Ready = true
		out.MoveCount = snap.Board.MoveCount()
		size := snap.Board.Size()
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if c := snap.Board.Get(x, y); c != domain.None {
					out.Stones = append(out.Stones, stoneJSON{X: x, Y: y, Color: c.String()})
				}
			}
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
