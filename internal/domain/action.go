package domain

import (
	"encoding/json"
	"time"
)

// ActionKind classifies a MirrorAction.
type ActionKind string

const ActionIgnore ActionKind = "IGNORE"

// FollowAction returns the action kind for a mirror attempt in mode m.
func FollowAction(m MirrorMode, failed bool) ActionKind {
	k := "FOLLOW_" + string(m)
	if failed {
		k += "_ERROR"
	}
	return ActionKind(k)
}

// MirrorAction is one entry of the append-only operator action log.
type MirrorAction struct {
	ID        string
	TxHash    string
	Kind      ActionKind
	CreatedAt time.Time
	Result    json.RawMessage
}

// IDGenerator produces identifiers for new action records.
type IDGenerator interface {
	NextID() string
}
