package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/docuchat/docuchat/internal/common"
)

// ProjectChecker verifies a project exists before a chat is created in it.
type ProjectChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service owns chats and their append-only message logs. Appends to one
// chat are serialized by a per-chat lock; different chats append
// independently.
type Service struct {
	repo     *Repo
	projects ProjectChecker

	mu    sync.Mutex
	locks map[string]*chatLock
}

// chatLock is refcounted so idle entries leave the table instead of
// accumulating for every chat ever touched.
type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(repo *Repo, projects ProjectChecker) *Service {
	return &Service{
		repo:     repo,
		projects: projects,
		locks:    make(map[string]*chatLock),
	}
}

func (s *Service) lockChat(chatID string) *chatLock {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &chatLock{}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Service) unlockChat(chatID string, l *chatLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, chatID)
	}
	s.mu.Unlock()
}

func (s *Service) CreateChat(ctx context.Context, projectID, title string) (*Chat, error) {
	ok, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: project %s", common.ErrNotFound, projectID)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &Chat{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: create chat: %v", common.ErrPersistence, err)
	}
	return c, nil
}

func (s *Service) GetChat(ctx context.Context, id string) (*Chat, error) {
	return s.repo.GetChat(ctx, id)
}

func (s *Service) ListChats(ctx context.Context, projectID string) ([]Chat, error) {
	return s.repo.ListChats(ctx, projectID)
}

// AppendMessage appends one turn to a chat. Unknown chat ids fail with
// ErrNotFound and write nothing.
func (s *Service) AppendMessage(ctx context.Context, chatID, role, content string, sources []string) (*Message, error) {
	l := s.lockChat(chatID)
	defer s.unlockChat(chatID, l)

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []string{}
	}
	m := &Message{
		ID:        id,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: append message: %v", common.ErrPersistence, err)
	}
	return m, nil
}

func (s *Service) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID)
}

// RecentHistory returns the last limit messages of a chat, oldest first.
func (s *Service) RecentHistory(ctx context.Context, chatID string, limit int) ([]Message, error) {
	desc, err := s.repo.ListRecentMessagesDesc(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	out := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, desc[i])
	}
	return out, nil
}
