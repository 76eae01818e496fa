package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Favorite struct {
	UserID        uuid.UUID `json:"userId"`
	OpportunityID string    `json:"opportunityId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// RefreshRun is one recorded population cycle of the opportunity cache.
type RefreshRun struct {
	ID            int64     `json:"id"`
	Strategy      string    `json:"strategy"`
	Status        string    `json:"status"`
	Items         int       `json:"items"`
	SourcesOK     int       `json:"sources_ok"`
	SourcesFailed int       `json:"sources_failed"`
	Rejected      int       `json:"rejected"`
	Details       string    `json:"details"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    int64     `json:"duration_ms"`
}
