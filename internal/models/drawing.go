// internal/models/drawing.go
package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TimeLapseEvent is one recorded canvas action. Timestamp is in Unix
// milliseconds; zero means the client did not send one.
type TimeLapseEvent struct {
	Timestamp float64         `json:"timestamp,omitempty"`
	Action    string          `json:"action,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Color     string          `json:"color,omitempty"`
	Size      float64         `json:"size,omitempty"`
	Point     *Point          `json:"point,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
}

// Drawing is a saved artwork together with its action log.
type Drawing struct {
	ID              string           `json:"id" gorm:"primaryKey;size:36"`
	UserID          string           `json:"user_id" gorm:"size:36;index;not null"`
	Title           string           `json:"title" gorm:"size:255;not null"`
	Description     string           `json:"description"`
	CanvasData      datatypes.JSON   `json:"canvas_data"`
	TimeLapse       []TimeLapseEvent `json:"time_lapse" gorm:"serializer:json"`
	QuestID         *string          `json:"quest_id,omitempty" gorm:"size:64"`
	DrawingDuration *float64         `json:"drawing_duration,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (Drawing) TableName() string {
	return "drawings"
}

// Text is the title and description joined for keyword analysis.
func (d *Drawing) Text() string {
	return d.Title + " " + d.Description
}

// DrawingUpdate carries the fields a client may change. Nil means unchanged.
type DrawingUpdate struct {
	Title           *string           `json:"title"`
	Description     *string           `json:"description"`
	CanvasData      *datatypes.JSON   `json:"canvas_data"`
	TimeLapse       *[]TimeLapseEvent `json:"time_lapse"`
	DrawingDuration *float64          `json:"drawing_duration"`
}

// Apply copies the set fields onto d.
func (u DrawingUpdate) Apply(d *Drawing) {
	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.CanvasData != nil {
		d.CanvasData = *u.CanvasData
	}
	if u.TimeLapse != nil {
		d.TimeLapse = *u.TimeLapse
	}
	if u.DrawingDuration != nil {
		d.DrawingDuration = u.DrawingDuration
	}
}
