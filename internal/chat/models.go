package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Chat struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	ProjectID string    `gorm:"size:36;index;not null" json:"project_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt always equals the newest message's created_at; bumped in the
	// same transaction as the insert.
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

type Message struct {
	// Seq gives a monotonic within-chat order even when two appends land on
	// the same timestamp.
	Seq       uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        string    `gorm:"size:26;uniqueIndex;not null" json:"id"`
	ChatID    string    `gorm:"size:26;index;not null" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Sources   []string  `gorm:"serializer:json;type:text" json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }
