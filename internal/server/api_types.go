package server

import "bingo-server/internal/bingo"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// ATTACH (initial sync after a successful player attachment)
// ============================================================================
type CardsPayload struct {
	Cards []bingo.Card `json:"cards"`
}

type CalledNumbersPayload struct {
	Numbers []int `json:"numbers"`
}

type UnauthorizedPayload struct {
	Message string `json:"message"`
}

// ============================================================================
// DRAWS (new_number / winner / trial_number / trial_winner / game_over)
// ============================================================================
type NewNumberPayload struct {
	Number int `json:"number"`
}

type WinnerEntry struct {
	Phone string     `json:"phone"`
	Line  bingo.Line `json:"line"`
}

type WinnerPayload struct {
	Winners []WinnerEntry `json:"winners"`
}

type TrialNumberPayload struct {
	Number int `json:"number"`
}

type TrialWinnerPayload struct {
	Phone string     `json:"phone"`
	Line  bingo.Line `json:"line"`
}

type GameOverPayload struct {
	Message string `json:"message"`
}

// ============================================================================
// ROSTER AND MONITORING (player_list / approaching / stats)
// ============================================================================
type PlayerListPayload struct {
	Players []bingo.PlayerInfo `json:"players"`
}

type ApproachingEntry struct {
	Phone   string `json:"phone"`
	Missing int    `json:"missing"`
	Trial   bool   `json:"isTrial"`
}

type ApproachingPayload struct {
	Players []ApproachingEntry `json:"players"`
}

type StatsPayload struct {
	TotalCards int    `json:"totalCards"`
	TotalPrize string `json:"totalPrize"`
}

// ============================================================================
// ADMIN COMMANDS (reset_game / set_trial / spawn_bots)
// ============================================================================
type ResetRequest struct {
	ClearPlayers bool `json:"clearPlayers"`
}

type ResetPayload struct {
	Message string `json:"message"`
}

type SetTrialRequest struct {
	Enabled bool `json:"enabled"`
}

type SpawnBotsRequest struct {
	Count int `json:"count"`
}

// ============================================================================
// ORDER REST GLUE (/api/orders, /api/approve-order, /api/check-status)
// ============================================================================
type CreateOrderRequest struct {
	Phone         string `json:"phone"`
	OperationCode string `json:"operationCode"`
	Trial         bool   `json:"isTrial"`
}

type CreateOrderResponse struct {
	Success      bool   `json:"success"`
	RequestToken string `json:"requestToken,omitempty"`
	Message      string `json:"message,omitempty"`
}

type ApproveOrderRequest struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type ApproveOrderResponse struct {
	Success bool     `json:"success"`
	Phone   string   `json:"phone,omitempty"`
	Tokens  []string `json:"tokens,omitempty"`
}
