package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/server"
	"github.com/kbukum/glowbook/sse"
)

// streamChanges streams row changes of a table as Server-Sent Events. Query
// parameters become equality filters (?salonId=s1).
func (h *Handler) streamChanges(c *gin.Context) {
	table := c.Param("table")
	if !model.KnownTable(table) {
		server.RespondWithError(c, errors.InvalidInput("table", "unknown table "+table))
		return
	}
	filters := cloud.Filters{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	client := sse.NewClient("changes:"+table+":"+uuid.NewString(), 256, h.log)
	ctx := c.Request.Context()
	unsubscribe, err := h.backend.Subscribe(ctx, table, filters, func(ch cloud.Change) {
		client.SendJSON(string(ch.Type), ch)
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	defer unsubscribe()

	h.log.Debug("change stream opened", logger.Fields(logger.FieldTable, table, "client_id", client.ID()))
	sse.Serve(c.Writer, c.Request, client, h.keepAlive)
	if n := client.Dropped(); n > 0 {
		h.log.Warn("change stream dropped events", logger.Fields(logger.FieldTable, table, "client_id", client.ID(), "dropped", n))
	}
}
