package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := newTestServer()
	httpServer := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(httpServer.Close)
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/websocket"
	return s, url
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(ClientMessage{Type: msgType, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// readUntil drains incoming messages until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) ServerMessage {
	t.Helper()
	for i := 0; i < 30; i++ {
		_, data, err := conn.Read(ctx)
		require.NoErrorf(t, err, "waiting for %q", wantType)

		var msg ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == wantType {
			return msg
		}
	}
	t.Fatalf("never received %q", wantType)
	return ServerMessage{}
}

func approvedToken(t *testing.T, s *Server, phone string, cards int, trial bool) string {
	t.Helper()
	order, err := s.orders.AddPending(phone, "TX-1001", trial)
	require.NoError(t, err)
	approvals := s.orders.Approve(order.ID, cards)
	require.Len(t, approvals, cards)
	return approvals[0].Token
}

func TestWebSocketPingPong(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, url := setupTestServer(t)
	conn := dial(t, ctx, url+"?role=admin")

	send(t, ctx, conn, "ping", struct{}{})
	readUntil(t, ctx, conn, "pong")
}

func TestWebSocketInvalidJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, url := setupTestServer(t)
	conn := dial(t, ctx, url+"?role=admin")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("junk")))
	readUntil(t, ctx, conn, "error")

	// Connection survives bad input
	send(t, ctx, conn, "ping", struct{}{})
	readUntil(t, ctx, conn, "pong")
}

func TestWebSocketUnauthorizedToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, url := setupTestServer(t)
	conn, _, err := websocket.Dial(ctx, url+"?t=bogus", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := readUntil(t, ctx, conn, "unauthorized")
	assert.Equal(t, "unauthorized", msg.Type)

	// Server closes the socket after rejecting
	_, _, err = conn.Read(ctx)
	assert.Error(t, err)
}

func TestWebSocketTrialRejectedWhenDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, url := setupTestServer(t)
	s.game.SetTrialEnabled(false)
	token := approvedToken(t, s, "712345678", 1, true)

	conn, _, err := websocket.Dial(ctx, url+"?t="+token, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readUntil(t, ctx, conn, "unauthorized")
}

func TestPlayerAttachReceivesCards(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, url := setupTestServer(t)
	token := approvedToken(t, s, "712345678", 2, false)

	conn := dial(t, ctx, url+"?t="+token)

	msg := readUntil(t, ctx, conn, "your_cards")
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	cards, ok := payload["cards"].([]interface{})
	require.True(t, ok)
	assert.Len(t, cards, 2)

	readUntil(t, ctx, conn, "called_numbers")
}

func TestPlayerReconnectKeepsCards(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, url := setupTestServer(t)
	token := approvedToken(t, s, "712345678", 1, false)

	conn1 := dial(t, ctx, url+"?t="+token)
	msg1 := readUntil(t, ctx, conn1, "your_cards")
	conn1.Close(websocket.StatusNormalClosure, "")

	conn2 := dial(t, ctx, url+"?t="+token)
	msg2 := readUntil(t, ctx, conn2, "your_cards")

	data1, err := json.Marshal(msg1.Payload)
	require.NoError(t, err)
	data2, err := json.Marshal(msg2.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, string(data1), string(data2))
}

func TestCallNumberBroadcasts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, url := setupTestServer(t)
	admin := dial(t, ctx, url+"?role=admin")
	readUntil(t, ctx, admin, "player_list")

	send(t, ctx, admin, "call_number", struct{}{})
	msg := readUntil(t, ctx, admin, "new_number")

	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	number, ok := payload["number"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, number, float64(1))
	assert.LessOrEqual(t, number, float64(75))
}

func TestResetGameRequiresAdmin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, url := setupTestServer(t)
	token := approvedToken(t, s, "712345678", 1, false)

	player := dial(t, ctx, url+"?t="+token)
	readUntil(t, ctx, player, "your_cards")

	send(t, ctx, player, "call_number", struct{}{})
	readUntil(t, ctx, player, "new_number")

	// Silently ignored for non-admins
	send(t, ctx, player, "reset_game", ResetRequest{ClearPlayers: true})
	send(t, ctx, player, "ping", struct{}{})
	readUntil(t, ctx, player, "pong")

	assert.True(t, s.game.Started(), "player must not be able to reset")
}

func TestAdminResetGame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, url := setupTestServer(t)
	admin := dial(t, ctx, url+"?role=admin")
	readUntil(t, ctx, admin, "player_list")

	send(t, ctx, admin, "call_number", struct{}{})
	readUntil(t, ctx, admin, "new_number")
	require.True(t, s.game.Started())

	send(t, ctx, admin, "reset_game", ResetRequest{})
	readUntil(t, ctx, admin, "reset")

	assert.False(t, s.game.Started())
	assert.Empty(t, s.game.Snapshot().Called)
}

func TestAdminSpawnBots(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, url := setupTestServer(t)
	admin := dial(t, ctx, url+"?role=admin")
	readUntil(t, ctx, admin, "player_list")

	send(t, ctx, admin, "spawn_bots", SpawnBotsRequest{Count: 3})
	msg := readUntil(t, ctx, admin, "player_list")

	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	players, ok := payload["players"].([]interface{})
	require.True(t, ok)
	assert.Len(t, players, 3)
}

func TestDisconnectMarksPlayerOffline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, url := setupTestServer(t)
	token := approvedToken(t, s, "712345678", 1, false)

	player := dial(t, ctx, url+"?t="+token)
	readUntil(t, ctx, player, "your_cards")
	player.Close(websocket.StatusNormalClosure, "")

	assert.Eventually(t, func() bool {
		roster := s.game.Players()
		return len(roster) == 1 && !roster[0].Online
	}, 2*time.Second, 20*time.Millisecond)
}
