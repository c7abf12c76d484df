// internal/models/participant.go
package models

import "time"

// Team identifies which side of a match a participant is slotted on.
type Team string

const (
	// TeamNone means the participant holds a lobby slot but no team yet.
	TeamNone Team = ""
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

// Opposite returns the other playing side. TeamNone maps to itself.
func (t Team) Opposite() Team {
	switch t {
	case TeamBlue:
		return TeamRed
	case TeamRed:
		return TeamBlue
	}
	return TeamNone
}

// Participant is one queued or rostered player. ID is the player's
// chat-platform identity and is the equality key everywhere; two
// Participant values with the same ID are the same player.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`

	Team  Team `json:"team"`
	Ready bool `json:"ready"`
}

// Ban blocks a participant from queueing in a league until Expires.
type Ban struct {
	ParticipantID string    `json:"participantId"`
	Reason        string    `json:"reason,omitempty"`
	Expires       time.Time `json:"expires"`
}

// Active reports whether the ban is still in force at the given instant.
func (b Ban) Active(now time.Time) bool {
	return now.Before(b.Expires)
}
