// internal/models/story.go
package models

import "time"

const (
	GeneratedWithTemplate = "template_system"
	GeneratedWithAI       = "ai"
)

// StoryPage is one illustrated page.
type StoryPage struct {
	Content       string `json:"content" jsonschema_description:"Story text for this page"`
	DrawingPrompt string `json:"drawing_prompt" jsonschema_description:"What the child should draw for this page"`
}

// StoryDraft is a freshly generated three-page story.
type StoryDraft struct {
	Title         string      `json:"title" jsonschema_description:"Story title"`
	Pages         []StoryPage `json:"pages" jsonschema_description:"Exactly three pages"`
	Themes        []string    `json:"themes" jsonschema_description:"Themes covered by the story"`
	ArtFocus      string      `json:"art_focus" jsonschema_description:"The drawing skill this story practises"`
	GeneratedWith string      `json:"generated_with,omitempty" jsonschema:"-"`
	Provider      string      `json:"provider,omitempty" jsonschema:"-"`
}

// Story is a persisted story.
type Story struct {
	ID            string      `json:"id" gorm:"primaryKey;size:36"`
	UserID        string      `json:"user_id" gorm:"size:36;index;not null"`
	Title         string      `json:"title" gorm:"size:255;not null"`
	Content       string      `json:"content"`
	Pages         []StoryPage `json:"pages" gorm:"serializer:json"`
	UserPrompt    string      `json:"user_prompt,omitempty"`
	Themes        []string    `json:"themes" gorm:"serializer:json"`
	ArtFocus      string      `json:"art_focus,omitempty"`
	GeneratedWith string      `json:"generated_with" gorm:"size:32"`
	Provider      string      `json:"provider,omitempty" gorm:"size:32"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (Story) TableName() string {
	return "stories"
}
