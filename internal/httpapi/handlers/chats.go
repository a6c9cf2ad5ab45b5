package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/docuchat/internal/common"
)

type createChatReq struct {
	ProjectID string `json:"project_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	created, err := h.Chats.CreateChat(c.Request.Context(), req.ProjectID, req.Title)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Ok(c, created)
}

func (h *Handler) ListChats(c *gin.Context) {
	projectID := c.Param("id")

	// 404 for an unknown project rather than a silently empty list
	if _, err := h.Projects.Get(c.Request.Context(), projectID); err != nil {
		common.FailErr(c, err)
		return
	}

	chats, err := h.Chats.ListChats(c.Request.Context(), projectID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Ok(c, gin.H{"chats": chats})
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.Chats.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Ok(c, gin.H{"messages": msgs})
}
