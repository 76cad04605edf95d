package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"bingo-server/internal/bingo"
	"bingo-server/internal/orders"
)

// Prize math mirrors what the cashier promises on the card: each card
// costs 5 and 80% of the take goes to the pot.
const (
	cardPrice  = 5.0
	prizeShare = 0.8
)

type Server struct {
	port int

	game        *bingo.Game
	orders      *orders.Service
	rounds      *orders.RoundStore // nil when DATABASE_URL is unset
	connections *ConnectionManager
	trials      *TrialRunner
	limiter     *RateLimiter
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	game := bingo.NewGame()

	var rounds *orders.RoundStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := orders.NewRoundStore(ctx, dsn)
		if err != nil {
			log.Warn().Err(err).Msg("round history disabled, database unreachable")
		} else {
			rounds = store
		}
	}

	srv := &Server{
		port:        port,
		game:        game,
		orders:      orders.NewService(),
		rounds:      rounds,
		connections: NewConnectionManager(),
		trials:      NewTrialRunner(game, clockwork.NewRealClock()),
		limiter:     NewRateLimiter(30, time.Minute),
	}

	go srv.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// cleanupTask periodically trims expired rate-limiter windows.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.limiter.Cleanup()
	}
}

// Shutdown stops the demo loops and closes the round store. The HTTP
// listener is shut down separately by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.trials.CancelAll()

	if s.rounds != nil {
		if err := s.rounds.Close(); err != nil {
			return fmt.Errorf("closing round store: %w", err)
		}
	}
	return nil
}
