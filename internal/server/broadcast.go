package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"bingo-server/internal/bingo"
)

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type:    "error",
		Payload: ErrorMessage{Message: msg},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Warn().Err(err).Msg("failed to send error message")
	}
}

// broadcastAll fans a message out to every live connection. Uses a
// background context: a broadcast must not die with the handler that
// triggered it.
func (s *Server) broadcastAll(messageType string, payload interface{}) {
	for _, entry := range s.connections.All() {
		msg := ServerMessage{Type: messageType, Payload: payload}
		if err := s.sendMessage(entry.Conn, context.Background(), msg); err != nil {
			log.Warn().Err(err).Str("connection", entry.ID).Msg("broadcast failed")
		}
	}
}

// broadcastAdmins fans a message out to admin consoles only.
func (s *Server) broadcastAdmins(messageType string, payload interface{}) {
	for _, entry := range s.connections.Admins() {
		msg := ServerMessage{Type: messageType, Payload: payload}
		if err := s.sendMessage(entry.Conn, context.Background(), msg); err != nil {
			log.Warn().Err(err).Str("connection", entry.ID).Msg("admin broadcast failed")
		}
	}
}

// sendToSessions delivers a message to the given connection IDs only.
func (s *Server) sendToSessions(ids []string, messageType string, payload interface{}) {
	for _, entry := range s.connections.Sessions(ids) {
		msg := ServerMessage{Type: messageType, Payload: payload}
		if err := s.sendMessage(entry.Conn, context.Background(), msg); err != nil {
			log.Warn().Err(err).Str("connection", entry.ID).Msg("session send failed")
		}
	}
}

// broadcastRoster pushes the current player list to admin consoles.
func (s *Server) broadcastRoster() {
	s.broadcastAdmins("player_list", PlayerListPayload{Players: s.game.Players()})
}

// broadcastStats pushes the card/prize totals to everyone.
func (s *Server) broadcastStats() {
	totalCards := s.orders.ApprovedCount()
	prize := float64(totalCards) * cardPrice * prizeShare
	s.broadcastAll("stats", StatsPayload{
		TotalCards: totalCards,
		TotalPrize: fmt.Sprintf("%.2f", prize),
	})
}

// broadcastApproaching sends the near-winner list to everyone. Admins see
// full phone numbers; players get them masked.
func (s *Server) broadcastApproaching() {
	approaching := s.game.Approaching()
	if approaching == nil {
		approaching = []bingo.Approach{}
	}

	full := make([]ApproachingEntry, len(approaching))
	masked := make([]ApproachingEntry, len(approaching))
	for i, a := range approaching {
		full[i] = ApproachingEntry{Phone: a.Phone, Missing: a.Missing, Trial: a.Trial}
		masked[i] = ApproachingEntry{Phone: maskPhone(a.Phone), Missing: a.Missing, Trial: a.Trial}
	}

	for _, entry := range s.connections.All() {
		payload := ApproachingPayload{Players: masked}
		if entry.Info.Role == RoleAdmin {
			payload = ApproachingPayload{Players: full}
		}
		msg := ServerMessage{Type: "approaching", Payload: payload}
		if err := s.sendMessage(entry.Conn, context.Background(), msg); err != nil {
			log.Warn().Err(err).Str("connection", entry.ID).Msg("approaching broadcast failed")
		}
	}
}

// maskPhone hides the middle digits of a phone for non-admin recipients.
func maskPhone(phone string) string {
	if len(phone) < 6 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
