package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/docuchat/internal/common"
)

type queryReq struct {
	ChatID   string `json:"chat_id" binding:"required"`
	Question string `json:"question" binding:"required"`
}

func (h *Handler) Query(c *gin.Context) {
	var req queryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	res, err := h.Orch.Query(c.Request.Context(), req.ChatID, req.Question)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Ok(c, res)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"loaded_projects": h.Cache.Len(),
	})
}
