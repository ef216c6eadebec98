package chat

import "time"

// Session captures a transient anonymous conversation with the cat.
type Session struct {
	ID          string    `json:"id"`
	PersonaName string    `json:"personaName"`
	CreatedAt   time.Time `json:"createdAt"`
}
