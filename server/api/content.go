package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/server"
)

func (h *Handler) publishedNews(c *gin.Context) {
	news, ok := domain(c, h.backend.News)
	if !ok {
		return
	}
	server.RespondList(c, news.Published(c.Request.Context()))
}

func (h *Handler) activePromotions(c *gin.Context) {
	promotions, ok := domain(c, h.backend.Promotions)
	if !ok {
		return
	}
	server.RespondList(c, promotions.Active(c.Request.Context(), h.now()))
}
