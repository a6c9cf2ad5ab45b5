package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/docuchat/docuchat/internal/common"
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// Create registers a project in state unbuilt. The index build itself is an
// async job enqueued by the caller once the record exists.
func (s *Service) Create(ctx context.Context, name, description string, urls []string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", common.ErrValidation)
	}

	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u != "" {
			cleaned = append(cleaned, u)
		}
	}

	p := &Project{
		ID:          common.NewUUID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		URLs:        cleaned,
		BuildState:  StateUnbuilt,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: create project: %v", common.ErrPersistence, err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// MarkStale flags a ready project for rebuild; it keeps serving its old
// artifact until the new one swaps in.
func (s *Service) MarkStale(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.BuildState != StateReady {
		return fmt.Errorf("%w: project %s is %s, only ready projects can be rebuilt", common.ErrValidation, id, p.BuildState)
	}
	return s.repo.UpdateBuildState(ctx, id, StateStale)
}
