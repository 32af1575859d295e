// internal/models/progress.go
package models

import "time"

const (
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// QuestProgress is a user's standing on one catalog quest.
type QuestProgress struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:36"`
	UserID               string    `json:"user_id" gorm:"size:36;uniqueIndex:idx_progress_user_quest;not null"`
	QuestID              string    `json:"quest_id" gorm:"size:64;uniqueIndex:idx_progress_user_quest;not null"`
	Status               string    `json:"status" gorm:"size:16;not null"`
	CompletionPercentage float64   `json:"completion_percentage"`
	BadgesEarned         []string  `json:"badges_earned" gorm:"serializer:json"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (QuestProgress) TableName() string {
	return "quest_progress"
}

// Quest is a catalog activity.
type Quest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	Type        string `json:"type"`
	Badge       string `json:"badge,omitempty"`
}
