package model

import "time"

// EventType names a kind of tracked user interaction.
type EventType string

const (
	EventViewGameStart EventType = "VIEW_GAME_START"
	EventViewGameEnd   EventType = "VIEW_GAME_END"
	EventLikeGame      EventType = "LIKE_GAME"
	EventFavoriteGame  EventType = "FAVORITE_GAME"
	EventRateGame      EventType = "RATE_GAME"
	EventSearchGame    EventType = "SEARCH_GAME"
	EventFilterGame    EventType = "FILTER_GAME"
)

// ValidEventTypes is the closed set of event types the tracker emits.
var ValidEventTypes = map[EventType]bool{
	EventViewGameStart: true,
	EventViewGameEnd:   true,
	EventLikeGame:      true,
	EventFavoriteGame:  true,
	EventRateGame:      true,
	EventSearchGame:    true,
	EventFilterGame:    true,
}

// ActivityEvent is one timestamped telemetry record, the body of
// POST /user/activities. Immutable once constructed and sent at most once:
// a failed send is logged and the event dropped, there is no outbox.
type ActivityEvent struct {
	ID        string         `json:"eventId"   validate:"required"`
	Type      EventType      `json:"type"      validate:"required"`
	Data      map[string]any `json:"data"      validate:"required"`
	Timestamp time.Time      `json:"timestamp" validate:"required"`
	UserID    string         `json:"userId"    validate:"required"`
	SessionID string         `json:"sessionId" validate:"required,uuid4"`
}

// LegacyAction is the flat wire shape of POST /recommendations/actions, an
// older iteration of the activity endpoint that some deployments still run.
// Field mapping from ActivityEvent:
//
//	UserID      ← event.UserID
//	BoardgameID ← event.Data["gameId"]
//	ActionType  ← event.Type lowered without the _GAME suffix ("like",
//	              "favorite", "rate", "search", "filter", "view")
//	ActionValue ← the event's single salient value, stringified
//	Timestamp   ← event.Timestamp
//
// GameName is not derivable from an event alone; it is filled from the
// catalog snapshot when available and left empty otherwise.
type LegacyAction struct {
	UserID      string    `json:"user_id"`
	BoardgameID GameID    `json:"boardgame_id"`
	GameName    string    `json:"game_name"`
	ActionType  string    `json:"action_type"`
	ActionValue string    `json:"action_value"`
	Timestamp   time.Time `json:"timestamp"`
}
