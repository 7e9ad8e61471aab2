package models

import "time"

// Event is an authority-run channel-join promotion. Users complete it at most
// once for a fixed reward, up to ParticipantLimit participants.
type Event struct {
	Channels         []string  `json:"channels"`
	ParticipantLimit int       `json:"participant_limit"`
	Participants     []int64   `json:"participants"`
	CreatedAt        time.Time `json:"created_at"`
}
