package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/docuchat/internal/common"
)

type createProjectReq struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	URLs        []string `json:"urls"`
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	p, err := h.Projects.Create(c.Request.Context(), req.Name, req.Description, req.URLs)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	// The index builds asynchronously; the project serves as soon as the
	// worker finishes.
	if err := h.Builds.PublishBuild(c.Request.Context(), p.ID); err != nil {
		log.Printf("[CreateProject] enqueue build project=%s err=%v", p.ID, err)
	}

	common.Ok(c, p)
}

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.Projects.List(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Ok(c, gin.H{"projects": projects})
}

func (h *Handler) GetProject(c *gin.Context) {
	p, err := h.Projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Ok(c, p)
}

func (h *Handler) RebuildProject(c *gin.Context) {
	id := c.Param("id")

	if err := h.Projects.MarkStale(c.Request.Context(), id); err != nil {
		common.FailErr(c, err)
		return
	}
	if err := h.Builds.PublishBuild(c.Request.Context(), id); err != nil {
		log.Printf("[RebuildProject] enqueue build project=%s err=%v", id, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to enqueue rebuild")
		return
	}
	common.Ok(c, gin.H{"project_id": id, "build_state": "stale"})
}
