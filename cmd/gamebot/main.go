// gamebot is a headless client: it connects to a lobby server, joins under a
// configured name, readies up and logs every state change and notification.
// Useful for soaking the server and for watching the protocol go by.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outbreakgame/outbreak-client/internal/client"
	"github.com/outbreakgame/outbreak-client/internal/conn"
	"github.com/outbreakgame/outbreak-client/internal/session"
	"github.com/outbreakgame/outbreak-client/internal/state"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	origin := os.Getenv("SERVER_ORIGIN")
	if origin == "" {
		origin = "http://localhost:8080"
	}
	name := os.Getenv("PLAYER_NAME")
	if name == "" {
		name = "gamebot"
	}
	sessionFile := os.Getenv("SESSION_FILE")
	if sessionFile == "" {
		sessionFile = ".gamebot-session.json"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(ctx, client.Config{
		Conn:  conn.Config{Origin: origin},
		Store: session.NewFileStore(sessionFile),
		Log:   log,
	})
	if err != nil {
		log.Fatal("create client", zap.Error(err))
	}
	defer c.Close()

	c.Connect()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return run(ctx, c, name, log) })
	if err := g.Wait(); err != nil {
		log.Fatal("bot exited", zap.Error(err))
	}
}

func run(ctx context.Context, c *client.Client, name string, log *zap.Logger) error {
	joined := false
	seen := map[string]bool{}
	var last state.Snapshot

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap := c.Snapshot()
		if snap.IsConnected && !joined {
			if c.JoinLobby(name) {
				joined = true
			}
		}
		if joined && snap.PlayerID != "" && !snap.GameStarted && !snap.AllReady {
			c.Ready()
		}

		if changed(last, snap) {
			log.Info("state",
				zap.Bool("connected", snap.IsConnected),
				zap.String("playerId", snap.PlayerID),
				zap.Int("roster", len(snap.Players)),
				zap.Bool("allReady", snap.AllReady),
				zap.Bool("gameStarted", snap.GameStarted),
				zap.Bool("gameOver", snap.GameOver),
				zap.Int("round", snap.Round.CurrentRound),
				zap.String("role", snap.Role.Role),
				zap.String("error", snap.ConnectionError))
			last = snap
		}

		for _, n := range c.Notifications() {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			log.Info("notification", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		}
	}
}

// changed compares the fields the bot reports on. Snapshots carry slices, so
// no direct equality.
func changed(a, b state.Snapshot) bool {
	return a.IsConnected != b.IsConnected ||
		a.PlayerID != b.PlayerID ||
		len(a.Players) != len(b.Players) ||
		a.AllReady != b.AllReady ||
		a.GameStarted != b.GameStarted ||
		a.GameOver != b.GameOver ||
		a.Round.CurrentRound != b.Round.CurrentRound ||
		a.Role.Role != b.Role.Role ||
		a.ConnectionError != b.ConnectionError
}
