package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-server/internal/orders"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/", s.RootHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	mux.HandleFunc("POST /api/orders", s.createOrderHandler)
	mux.HandleFunc("POST /api/approve-order", s.approveOrderHandler)
	mux.HandleFunc("GET /api/pending-orders", s.pendingOrdersHandler)
	mux.HandleFunc("GET /api/check-status/{identifier}", s.checkStatusHandler)
	mux.HandleFunc("GET /api/rounds", s.roundsHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "bingo server"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": s.connections.Count(),
	})
}

// ============================================================================
// ORDER REST HANDLERS
// ============================================================================

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CreateOrderResponse{Success: false, Message: "Invalid JSON"})
		return
	}

	order, err := s.orders.AddPending(req.Phone, req.OperationCode, req.Trial)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, CreateOrderResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, CreateOrderResponse{Success: true, RequestToken: order.RequestToken})
}

func (s *Server) approveOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req ApproveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ApproveOrderResponse{Success: false})
		return
	}

	approvals := s.orders.Approve(req.ID, req.Quantity)
	if len(approvals) == 0 {
		writeJSON(w, http.StatusNotFound, ApproveOrderResponse{Success: false})
		return
	}

	tokens := make([]string, len(approvals))
	for i, a := range approvals {
		tokens[i] = a.Token
	}
	writeJSON(w, http.StatusOK, ApproveOrderResponse{
		Success: true,
		Phone:   approvals[0].Phone,
		Tokens:  tokens,
	})

	// Card totals changed, everyone sees the new prize pot.
	s.broadcastStats()
}

func (s *Server) pendingOrdersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orders.Pending())
}

func (s *Server) checkStatusHandler(w http.ResponseWriter, r *http.Request) {
	report := s.orders.Status(r.PathValue("identifier"))
	status := http.StatusOK
	if report.Status == orders.StatusNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, report)
}

func (s *Server) roundsHandler(w http.ResponseWriter, r *http.Request) {
	if s.rounds == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "round history not configured"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.rounds.RecentRounds(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to load round history")
		http.Error(w, "Failed to load rounds", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ============================================================================
// WEBSOCKET
// ============================================================================

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Info().Str("connection", connectionID).Msg("new connection")

	info, ok := s.attach(socket, ctx, connectionID, r)
	if !ok {
		return
	}

	defer func() {
		s.trials.Stop(connectionID)
		s.limiter.RemoveConnection(connectionID)
		s.connections.Remove(connectionID)
		log.Info().Str("connection", connectionID).Msg("connection closed")

		if info.Role == RolePlayer {
			s.game.Detach(connectionID)
			s.broadcastRoster()
		}
	}()

	for {
		// Read from client
		msgType, data, err := socket.Read(ctx)

		if err != nil {
			log.Debug().Err(err).Str("connection", connectionID).Msg("read error")
			return
		}

		if msgType != websocket.MessageText {
			log.Warn().Str("connection", connectionID).Msg("non-text input")
			continue
		}

		if !s.limiter.Allow(connectionID) {
			s.sendError(socket, ctx, "Rate limit exceeded")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("connection", connectionID).Msg("invalid JSON")
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		log.Debug().Str("type", msg.Type).Str("connection", connectionID).Msg("message")

		// Route the message
		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)

		case "call_number":
			s.handleCallNumber()

		case "reset_game":
			s.handleResetGame(connectionID, msg.Payload)

		case "set_trial":
			s.handleSetTrial(connectionID, msg.Payload)

		case "spawn_bots":
			s.handleSpawnBots(connectionID, msg.Payload)

		default:
			log.Warn().Str("type", msg.Type).Str("connection", connectionID).Msg("unknown message type")
			s.sendError(socket, ctx, fmt.Sprintf("Unknown message type: %s", msg.Type))
		}
	}
}

// attach classifies the new socket from its query parameters and runs the
// initial sync. Returns false when the socket was rejected and closed.
func (s *Server) attach(socket *websocket.Conn, ctx context.Context, connectionID string, r *http.Request) (ConnInfo, bool) {
	role := r.URL.Query().Get("role")
	token := r.URL.Query().Get("t")

	if role == RoleAdmin {
		info := ConnInfo{Role: RoleAdmin}
		s.connections.Add(connectionID, socket, info)

		snap := s.game.Snapshot()
		s.sendSnapshot(socket, ctx, snap.Called)
		if err := s.sendMessage(socket, ctx, ServerMessage{
			Type:    "player_list",
			Payload: PlayerListPayload{Players: s.game.Players()},
		}); err != nil {
			log.Warn().Err(err).Str("connection", connectionID).Msg("admin sync failed")
		}
		return info, true
	}

	grant, ok := s.orders.Resolve(token)
	if !ok {
		s.reject(socket, ctx, "Invalid access token")
		return ConnInfo{}, false
	}
	if grant.Trial && !s.game.TrialEnabled() {
		s.reject(socket, ctx, "Trial mode is disabled")
		return ConnInfo{}, false
	}

	info := ConnInfo{Role: RolePlayer, Phone: grant.Phone, Trial: grant.Trial}
	s.connections.Add(connectionID, socket, info)
	s.game.Ensure(connectionID, grant.Phone, grant.Trial, grant.Cards)

	snap := s.game.Snapshot()
	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type:    "your_cards",
		Payload: CardsPayload{Cards: s.game.CardsFor(grant.Phone)},
	}); err != nil {
		log.Warn().Err(err).Str("connection", connectionID).Msg("card sync failed")
	}
	s.sendSnapshot(socket, ctx, snap.Called)

	s.broadcastRoster()
	s.broadcastStats()

	// A demo loop only makes sense before the real draw starts.
	if grant.Trial && snap.Active && len(snap.Winners) == 0 && len(snap.Called) == 0 {
		s.startTrial(socket, connectionID, grant.Phone)
	}

	return info, true
}

func (s *Server) sendSnapshot(socket *websocket.Conn, ctx context.Context, called []int) {
	if called == nil {
		called = []int{}
	}
	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type:    "called_numbers",
		Payload: CalledNumbersPayload{Numbers: called},
	}); err != nil {
		log.Warn().Err(err).Msg("snapshot send failed")
	}
}

func (s *Server) reject(socket *websocket.Conn, ctx context.Context, reason string) {
	msg := ServerMessage{Type: "unauthorized", Payload: UnauthorizedPayload{Message: reason}}
	if err := s.sendMessage(socket, ctx, msg); err != nil {
		log.Warn().Err(err).Msg("failed to send unauthorized")
	}
	socket.Close(websocket.StatusPolicyViolation, "unauthorized")
}

func (s *Server) startTrial(socket *websocket.Conn, connectionID, phone string) {
	s.trials.Start(connectionID, phone, func(msg ServerMessage) {
		if err := s.sendMessage(socket, context.Background(), msg); err != nil {
			log.Debug().Err(err).Str("connection", connectionID).Msg("trial send failed")
		}
	})
}

// ============================================================================
// WEBSOCKET COMMAND HANDLERS
// ============================================================================

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Warn().Err(err).Str("connection", connectionID).Msg("failed to send pong")
	}
}

func (s *Server) handleCallNumber() {
	// The first real number kills every demo loop and rewinds demo marks,
	// so trial cards compete on the real call history from here on.
	if !s.game.Started() {
		s.trials.CancelAll()
		s.game.ResyncTrialMarks()
	}

	result := s.game.CallNumber()
	if result == nil {
		if s.game.Exhausted() {
			s.broadcastAll("game_over", GameOverPayload{Message: "All numbers have been called"})
			s.persistRound()
		}
		return
	}

	s.broadcastAll("new_number", NewNumberPayload{Number: result.Number})

	for _, tw := range result.TrialWinners {
		s.sendToSessions(tw.Sessions, "trial_winner", TrialWinnerPayload{Phone: tw.Phone, Line: tw.Line})
	}

	if len(result.Winners) > 0 {
		entries := make([]WinnerEntry, len(result.Winners))
		for i, win := range result.Winners {
			entries[i] = WinnerEntry{Phone: win.Phone, Line: win.Line}
		}
		s.broadcastAll("winner", WinnerPayload{Winners: entries})
		s.persistRound()
	}

	s.broadcastApproaching()
}

func (s *Server) handleResetGame(connectionID string, payload json.RawMessage) {
	if !s.isAdmin(connectionID) {
		log.Warn().Str("connection", connectionID).Msg("reset_game from non-admin ignored")
		return
	}

	var req ResetRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			log.Warn().Err(err).Msg("invalid reset_game payload")
			return
		}
	}

	s.trials.CancelAll()
	s.game.Reset(req.ClearPlayers)
	if req.ClearPlayers {
		s.orders.Clear()
	}

	s.broadcastAll("reset", ResetPayload{Message: "Game has been reset"})
	s.broadcastRoster()
	s.broadcastStats()
	log.Info().Bool("clearPlayers", req.ClearPlayers).Msg("game reset")
}

func (s *Server) handleSetTrial(connectionID string, payload json.RawMessage) {
	if !s.isAdmin(connectionID) {
		log.Warn().Str("connection", connectionID).Msg("set_trial from non-admin ignored")
		return
	}

	var req SetTrialRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Warn().Err(err).Msg("invalid set_trial payload")
		return
	}

	s.game.SetTrialEnabled(req.Enabled)
	if !req.Enabled {
		s.trials.CancelAll()
	}
}

func (s *Server) handleSpawnBots(connectionID string, payload json.RawMessage) {
	if !s.isAdmin(connectionID) {
		log.Warn().Str("connection", connectionID).Msg("spawn_bots from non-admin ignored")
		return
	}

	var req SpawnBotsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Warn().Err(err).Msg("invalid spawn_bots payload")
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	s.game.AddBots(req.Count)
	s.broadcastRoster()
}

func (s *Server) isAdmin(connectionID string) bool {
	info, ok := s.connections.Info(connectionID)
	return ok && info.Role == RoleAdmin
}

// persistRound writes the finished round to the history store when one is
// configured. Best effort, a storage failure never blocks the game.
func (s *Server) persistRound() {
	if s.rounds == nil {
		return
	}

	snap := s.game.Snapshot()
	record := orders.RoundRecord{
		Numbers: snap.Called,
		EndedAt: time.Now(),
	}
	for _, win := range snap.Winners {
		record.Winners = append(record.Winners, win.Phone)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.rounds.SaveRound(ctx, record); err != nil {
			log.Error().Err(err).Msg("failed to persist round")
		}
	}()
}
