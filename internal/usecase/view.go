package usecase

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// Connection is the socket a view talks through
type Connection interface {
	Open(ctx context.Context, gameID int, token string) error
	Upgrade(token string) bool
	Send(env domain.Envelope)
	Events() <-chan domain.Event
	Close()
}

// HistorySource loads the moves already played in a game
type HistorySource interface {
	ListMoves(ctx context.Context, gameID int) ([]domain.Move, error)
}

// ViewOptions tunes a GameView
type ViewOptions struct {
	JournalSize int

	// OnChange is called on the view loop after every change to the board or game.
	// It must not call back into the view (Snapshot, AttemptMove and the like
	// wait for the loop and would deadlock); use the snapshot it is given.
	OnChange func(ViewSnapshot)
}

// ViewSnapshot is a copy of a view's state, safe to use outside the loop
type ViewSnapshot struct {
	Game      *domain.Game
	Board     *domain.Board // nil until history has been loaded
	Pending   int
	AuthError string
}

// pendingMove marks a locally played stone awaiting the server's echo
type pendingMove struct {
	Tag      uuid.UUID
	PlayerID int
	At       time.Time
}

// GameView is one mounted game: it owns the board and the game snapshot and
// runs every read and write of them on a single loop goroutine.
type GameView struct {
	ID uuid.UUID

	game    *domain.Game
	board   *domain.Board
	pending map[domain.Point]pendingMove
	journal *Journal
	authErr string

	session  *Session
	conn     Connection
	history  HistorySource
	log      *slog.Logger
	onChange func(ViewSnapshot)

	ops       chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type historyResult struct {
	moves []domain.Move
	err   error
}

// NewGameView creates a view of game. Run must be called to mount it.
func NewGameView(game *domain.Game, session *Session, conn Connection, history HistorySource, logger *slog.Logger, opts ViewOptions) (*GameView, error) {
	if game == nil {
		return nil, fmt.Errorf("%w: no game snapshot", domain.ErrGameNotFound)
	}
	if game.BoardSize <= 0 || game.BoardSize > domain.MaxBoardSize {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidBoardSize, game.BoardSize)
	}
	if session == nil {
		session = NewSession()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	id := uuid.New()
	return &GameView{
		ID:       id,
		game:     game.Clone(),
		pending:  make(map[domain.Point]pendingMove),
		journal:  NewJournal(opts.JournalSize),
		session:  session,
		conn:     conn,
		history:  history,
		log:      logger.With("component", "view", "view_id", id.String(), "game_id", game.ID),
		onChange: opts.OnChange,
		ops:      make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// current is the one accessor for the game snapshot. Every color resolution
// goes through it at the moment of use so game_update changes are never missed.
func (v *GameView) current() *domain.Game {
	return v.game
}

// Run mounts the view: it loads the move history, seeds the board, opens the
// connection and then processes local intents and remote events in order until
// ctx ends or Close is called. The connection is closed on return.
func (v *GameView) Run(ctx context.Context) error {
	defer close(v.stopped)
	defer v.conn.Close()

	credentials, unsubscribe := v.session.Subscribe()
	defer unsubscribe()

	// Buffered so a fetch finishing after unmount never blocks
	seeded := make(chan historyResult, 1)
	go func() {
		var res historyResult
		if v.history != nil {
			res.moves, res.err = v.history.ListMoves(ctx, v.game.ID)
		}
		seeded <- res
	}()

	var events <-chan domain.Event
	for {
		select {
		case <-ctx.Done():
			v.log.Info("view unmounted", "reason", ctx.Err())
			return nil

		case <-v.done:
			v.log.Info("view closed")
			return nil

		case res := <-seeded:
			seeded = nil
			if ctx.Err() != nil {
				// Unmounted while the fetch was in flight
				continue
			}
			v.seed(res.moves, res.err)
			v.open(ctx)
			events = v.conn.Events()
			v.changed()

		case op := <-v.ops:
			op()

		case token := <-credentials:
			v.upgrade(token)

		case ev, ok := <-events:
			if !ok {
				// No reconnect: the board stays as it is
				v.log.Warn("connection ended, board is no longer live")
				events = nil
				continue
			}
			if v.dispatch(ev) {
				v.changed()
			}
		}
	}
}

// Close unmounts the view. Safe to call more than once.
func (v *GameView) Close() {
	v.closeOnce.Do(func() {
		close(v.done)
	})
}

// Done is closed once Run has returned
func (v *GameView) Done() <-chan struct{} {
	return v.stopped
}

// Snapshot returns a copy of the view's current state
func (v *GameView) Snapshot(ctx context.Context) (ViewSnapshot, error) {
	var snap ViewSnapshot
	err := v.call(ctx, func() error {
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// RecentDiscards returns the events and history entries that were not applied
func (v *GameView) RecentDiscards(ctx context.Context) ([]Discard, error) {
	var out []Discard
	err := v.call(ctx, func() error {
		out = v.journal.GetAll()
		return nil
	})
	return out, err
}

// ClearDiscards empties the discard journal and returns how many entries it held
func (v *GameView) ClearDiscards(ctx context.Context) (int, error) {
	var n int
	err := v.call(ctx, func() error {
		n = v.journal.Len()
		v.journal.Clear()
		return nil
	})
	return n, err
}

// call runs fn on the view loop and waits for its result
func (v *GameView) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case v.ops <- func() { errc <- fn() }:
	case <-v.stopped:
		return domain.ErrViewClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// The loop runs an accepted op to completion before anything else
	return <-errc
}

func (v *GameView) snapshot() ViewSnapshot {
	snap := ViewSnapshot{
		Game:      v.current().Clone(),
		Pending:   len(v.pending),
		AuthError: v.authErr,
	}
	if v.board != nil {
		snap.Board = v.board.Clone()
	}
	return snap
}

func (v *GameView) changed() {
	if v.onChange != nil {
		v.onChange(v.snapshot())
	}
}

// seed builds the board from the move history. A failed fetch leaves an empty board.
func (v *GameView) seed(moves []domain.Move, fetchErr error) {
	board, err := domain.NewBoard(v.current().BoardSize)
	if err != nil {
		v.log.Error("cannot build board", "error", err)
		return
	}
	if fetchErr != nil {
		v.log.Warn("move history unavailable, starting from an empty board", "error", fetchErr)
	}

	slices.SortStableFunc(moves, func(a, b domain.Move) int {
		return cmp.Compare(a.MoveNumber, b.MoveNumber)
	})

	for _, m := range moves {
		color := ColorFor(m.PlayerID, v.current())
		if color == domain.None {
			v.discard(domain.MessageTypeMove, fmt.Sprintf("history move %d by unseated player %d", m.MoveNumber, m.PlayerID))
			continue
		}
		if err := board.Place(m.X, m.Y, color); err != nil {
			v.discard(domain.MessageTypeMove, fmt.Sprintf("history move %d: %v", m.MoveNumber, err))
		}
	}

	v.board = board
	v.log.Info("board seeded", "moves", board.MoveCount(), "history", len(moves))
}

// open connects with whatever credential is known right now
func (v *GameView) open(ctx context.Context) {
	if err := v.conn.Open(ctx, v.current().ID, v.session.Token()); err != nil {
		v.log.Error("cannot open connection", "error", err)
	}
}

func (v *GameView) upgrade(token string) {
	if token == "" {
		return
	}
	if !v.conn.Upgrade(token) {
		v.log.Debug("credential not attached, connection finished")
	}
}

func (v *GameView) discard(t domain.MessageType, reason string) {
	v.journal.Add(Discard{Type: t, Reason: reason, At: time.Now()})
	v.log.Debug("event discarded", "type", t, "reason", reason)
}
