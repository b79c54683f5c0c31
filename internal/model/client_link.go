package model

import "time"

// ClientLink connects a linkage id embedded in a tracker task to the
// client conversation that spawned it. The engine only reads these;
// rows are created by the workflow tooling that files the task.
type ClientLink struct {
	ID        int64     `json:"id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}
