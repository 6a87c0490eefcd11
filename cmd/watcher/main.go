package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmuslimabdulj/goban-live/internal/config"
	httpClient "github.com/mmuslimabdulj/goban-live/internal/delivery/http"
	"github.com/mmuslimabdulj/goban-live/internal/delivery/ws"
	"github.com/mmuslimabdulj/goban-live/internal/middleware"
	"github.com/mmuslimabdulj/goban-live/internal/usecase"
	"github.com/mmuslimabdulj/goban-live/view/board"
)

func main() {
	// Load .env file (ignore error if not exists)
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s <game-id>\n\n%s\n", os.Args[0], config.Usage())
	}
	flag.Parse()

	gameID, err := strconv.Atoi(flag.Arg(0))
	if err != nil || gameID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, gameID, logger); err != nil {
		logger.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "silent", "off":
		return slog.New(slog.DiscardHandler)
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, cfg *config.Config, gameID int, logger *slog.Logger) error {
	session := usecase.NewSession()
	if cfg.Token != "" {
		session.UseToken(cfg.Token)
	}

	// Initialize dependencies
	hc := middleware.NewHTTPClient(cfg.HTTPTimeout,
		middleware.RateLimit(middleware.NewHostRateLimiter(cfg.APILimit(), cfg.RateBurstAPI)),
		middleware.Headers(cfg.UserAgent, session.Token),
	)
	api := httpClient.NewClient(cfg.APIURL, hc)

	game, err := api.GetGame(ctx, gameID)
	if err != nil {
		return err
	}

	logger = logger.With("game_id", game.ID)
	conn := ws.NewConnection(ws.Options{
		BaseURL:          cfg.WSURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		MaxMessageSize:   int64(cfg.MaxMessageSize),
		SendLimit:        cfg.WSLimit(),
		SendBurst:        cfg.RateBurstWS,
	}, logger)

	view, err := usecase.NewGameView(game, session, conn, api, logger, usecase.ViewOptions{
		JournalSize: cfg.JournalSize,
		OnChange: func(s usecase.ViewSnapshot) {
			printBoard(os.Stdout, s)
		},
	})
	if err != nil {
		return err
	}

	viewCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go view.Run(viewCtx)

	if cfg.PreviewAddr != "" {
		server := &http.Server{
			Addr:         cfg.PreviewAddr,
			Handler:      middleware.SecurityHeaders(httpClient.NewPreviewHandler(view).Routes()),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("board preview running", "addr", cfg.PreviewAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("preview server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	cli := &commands{view: view, api: api, session: session, out: os.Stdout}
	lines := readLines(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			view.Close()
			<-view.Done()
			return nil

		case <-view.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				view.Close()
				<-view.Done()
				return nil
			}
			if quit := cli.exec(ctx, line); quit {
				view.Close()
				<-view.Done()
				return nil
			}
		}
	}
}

// readLines feeds stdin to the command loop. The goroutine ends with the process.
func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

func printBoard(w io.Writer, s usecase.ViewSnapshot) {
	if s.Board == nil {
		fmt.Fprintln(w, "loading board...")
		return
	}
	fmt.Fprintf(w, "\ngame %d (%s) moves=%d pending=%d\n", s.Game.ID, s.Game.Status, s.Board.MoveCount(), s.Pending)
	if s.AuthError != "" {
		fmt.Fprintf(w, "auth error: %s\n", s.AuthError)
	}
	fmt.Fprint(w, s.Board.String())
}

type commands struct {
	view    *usecase.GameView
	api     *httpClient.Client
	session *usecase.Session
	out     io.Writer
}

const help = `commands:
  play <x> <y>          place a stone
  login <user> <pass>   sign in and upgrade the connection
  logout                forget the current identity
  svg <path>            write the board as SVG
  discards [clear]      list or clear ignored events
  help                  show this help
  quit                  leave the game`

func (c *commands) exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "play":
		err = c.play(ctx, fields[1:])
	case "login":
		err = c.login(ctx, fields[1:])
	case "logout":
		c.session.Logout()
		fmt.Fprintln(c.out, "logged out")
	case "svg":
		err = c.svg(ctx, fields[1:])
	case "discards":
		err = c.discards(ctx, fields[1:])
	case "help":
		fmt.Fprintln(c.out, help)
	case "quit", "exit":
		return true
	default:
		err = fmt.Errorf("unknown command %q, try help", fields[0])
	}

	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}

func (c *commands) play(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: play <x> <y>")
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad y: %w", err)
	}
	return c.view.AttemptMove(ctx, x, y)
}

func (c *commands) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <user> <pass>")
	}
	auth, err := c.api.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	c.session.Login(auth.Player, auth.Token)
	fmt.Fprintf(c.out, "logged in as %s (%d)\n", auth.Player.Username, auth.Player.ID)
	return nil
}

func (c *commands) svg(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: svg <path>")
	}
	snap, err := c.view.Snapshot(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := board.SVG(snap.Board).Render(ctx, f); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %s\n", args[0])
	return nil
}

func (c *commands) discards(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "clear" {
		n, err := c.view.ClearDiscards(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "cleared %d discarded events\n", n)
		return nil
	}
	if len(args) != 0 {
		return errors.New("usage: discards [clear]")
	}

	entries, err := c.view.RecentDiscards(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no discarded events")
		return nil
	}
	for _, d := range entries {
		fmt.Fprintf(c.out, "%s  %-12s %s\n", d.At.Format(time.TimeOnly), d.Type, d.Reason)
	}
	return nil
}
