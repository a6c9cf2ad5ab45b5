package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/docuchat/docuchat/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateChat(ctx context.Context, c *Chat) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListChats returns a project's chats, most recently active first.
func (r *Repo) ListChats(ctx context.Context, projectID string) ([]Chat, error) {
	var out []Chat
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// InsertMessage atomically appends the message and bumps the chat's
// updated_at to the message's created_at.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.First(&c, "id = ?", m.ChatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		// UpdateColumn: updated_at must equal the message timestamp exactly,
		// not whatever gorm would stamp.
		return tx.Model(&Chat{}).
			Where("id = ?", m.ChatID).
			UpdateColumn("updated_at", m.CreatedAt).Error
	})
}

// ListMessages returns a chat's messages in creation order.
func (r *Repo) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var out []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecentMessagesDesc returns the most recent messages, newest first.
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
