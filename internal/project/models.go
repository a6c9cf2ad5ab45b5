package project

import "time"

// Build states of a project's vector index.
const (
	StateUnbuilt  = "unbuilt"
	StateBuilding = "building"
	StateReady    = "ready"
	StateStale    = "stale"
)

type Project struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	URLs        []string  `gorm:"serializer:json;type:text;not null" json:"urls"`
	BuildState  string    `gorm:"type:varchar(16);index;not null" json:"build_state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }
