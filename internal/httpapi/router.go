package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/httpapi/handlers"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/health", h.Health)

	r.POST("/projects", h.CreateProject)
	r.GET("/projects", h.ListProjects)
	r.GET("/projects/:id", h.GetProject)
	r.POST("/projects/:id/rebuild", h.RebuildProject)
	r.GET("/projects/:id/chats", h.ListChats)

	r.POST("/chats", h.CreateChat)
	r.GET("/chats/:id/messages", h.ListMessages)

	r.POST("/query", h.Query)

	return r
}
