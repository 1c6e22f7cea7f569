package models

import (
	"time"

	"gorm.io/gorm"
)

// PromptCategory groups drawing prompts for stats and filtering
type PromptCategory string

const (
	CategoryAnimal  PromptCategory = "animal"
	CategoryObject  PromptCategory = "object"
	CategoryFood    PromptCategory = "food"
	CategoryVehicle PromptCategory = "vehicle"
	CategoryNature  PromptCategory = "nature"
)

// SortKey selects the column session listings are ordered by
type SortKey string

const (
	SortByDate     SortKey = "date"
	SortByScore    SortKey = "score"
	SortByDuration SortKey = "duration"
)

// SortOrder selects the direction of a session listing
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// GameSession represents one round of the drawing game: a prompt is shown,
// the player draws, the recognizer produces a guess. A session is created
// when the round starts with the result fields unset, and mutated exactly
// once when the recognition result arrives (guess, confidence, correctness,
// end time, duration). The single-submit rule is enforced by the caller;
// stores accept any update by ID.
//
// DrawingRef holds a provider-dependent reference to the drawing (a URL for
// remote blob storage); DrawingData holds the payload inline for providers
// without blob support.
type GameSession struct {
	ID              SessionID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID          *UserID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Prompt          string         `gorm:"not null" json:"prompt"`
	PromptCategory  PromptCategory `json:"prompt_category,omitempty"`
	DrawingRef      string         `json:"drawing_ref,omitempty"`
	DrawingData     []byte         `json:"drawing_data,omitempty"`
	Guess           string         `json:"guess,omitempty"`
	Confidence      float64        `json:"confidence"`
	Correct         bool           `json:"correct"`
	StartedAt       time.Time      `gorm:"index" json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID.IsZero() {
		s.ID = NewSessionID()
	}
	return nil
}

// Completed reports whether the recognition result has been recorded.
// Only completed sessions count toward aggregate stats.
func (s *GameSession) Completed() bool {
	return s.Guess != ""
}

// UserProfile represents a player account
type UserProfile struct {
	ID        UserID    `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (u *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}

// ListOptions controls session listings. Filtering by owner happens before
// sorting, sorting before pagination. Ties sort stable in storage order.
type ListOptions struct {
	Limit     int
	Offset    int
	SortBy    SortKey
	SortOrder SortOrder
	UserID    *UserID
}

// SessionStats aggregates completed sessions (those with a non-empty guess).
// SuccessRate is a percentage in [0,100].
type SessionStats struct {
	TotalGames         int     `json:"total_games"`
	SuccessfulGuesses  int     `json:"successful_guesses"`
	AvgConfidence      float64 `json:"avg_confidence"`
	SuccessRate        float64 `json:"success_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// HealthStatus is the result of a single provider health check. It is produced
// fresh on every check and never cached beyond the check interval.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
	Err       string        `json:"error,omitempty"`
}

// SyncResult reports one synchronization run. Success is true only when the
// error list is empty; a partially failed run still carries the count of
// records that made it across.
type SyncResult struct {
	Success       bool      `json:"success"`
	SyncedRecords int       `json:"synced_records"`
	Errors        []string  `json:"errors,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}
