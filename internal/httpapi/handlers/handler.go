package handlers

import (
	"context"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/index"
	"github.com/docuchat/docuchat/internal/project"
	"github.com/docuchat/docuchat/internal/query"
)

// BuildPublisher enqueues an index build job for a project.
type BuildPublisher interface {
	PublishBuild(ctx context.Context, projectID string) error
}

type Handler struct {
	Projects *project.Service
	Chats    *chat.Service
	Orch     *query.Orchestrator
	Cache    *index.Cache
	Builds   BuildPublisher
}

func NewHandler(projects *project.Service, chats *chat.Service, orch *query.Orchestrator, cache *index.Cache, builds BuildPublisher) *Handler {
	return &Handler{
		Projects: projects,
		Chats:    chats,
		Orch:     orch,
		Cache:    cache,
		Builds:   builds,
	}
}
