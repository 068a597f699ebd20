package domain

import "time"

// Bus channels and websocket topics.
const (
	TopicGeneral     = "general"
	TopicPredictions = "predictions"
	TopicLiveMatches = "live_matches"

	StreamAudit = "stream:audit"
)

// Live message types carried on TopicLiveMatches.
const (
	MsgMatchStarted     = "match_started"
	MsgScoreUpdate      = "score_update"
	MsgMinuteUpdate     = "minute_update"
	MsgPredictionUpdate = "prediction_update"
	MsgMatchFinished    = "match_finished"
	MsgMatchStopped     = "match_stopped"
	MsgPredictionReady  = "prediction_completed"
	MsgRebuildCompleted = "rebuild_completed"
	MsgRebuildFailed    = "rebuild_failed"
)

// BusMessage is the JSON envelope published on the signal bus and relayed to
// websocket clients.
type BusMessage struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
