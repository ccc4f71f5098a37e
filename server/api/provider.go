package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/server"
)

type providerRequest struct {
	Name        string            `json:"name"`
	Credentials map[string]string `json:"credentials"`
}

func (h *Handler) bindProvider(c *gin.Context) (providerRequest, bool) {
	var req providerRequest
	if !bind(c, &req) {
		return req, false
	}
	if req.Name == "" {
		server.RespondWithError(c, errors.MissingField("name"))
		return req, false
	}
	return req, true
}

func (h *Handler) providerStatus(c *gin.Context) {
	server.RespondOK(c, h.backend.ProviderStatus())
}

func (h *Handler) switchProvider(c *gin.Context) {
	req, ok := h.bindProvider(c)
	if !ok {
		return
	}
	if err := h.backend.SwitchProvider(c.Request.Context(), req.Name, req.Credentials); err != nil {
		h.log.Warn("provider switch failed", logger.Fields(logger.FieldProvider, req.Name, logger.FieldError, err))
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("provider switched", logger.Fields(logger.FieldProvider, req.Name))
	server.RespondOK(c, h.backend.ProviderStatus())
}

func (h *Handler) migrate(c *gin.Context) {
	req, ok := h.bindProvider(c)
	if !ok {
		return
	}
	report, err := h.backend.MigrateToProvider(c.Request.Context(), req.Name, req.Credentials)
	if err != nil {
		h.log.Warn("migration failed", logger.Fields(logger.FieldProvider, req.Name, logger.FieldError, err))
		server.RespondWithError(c, err)
		return
	}
	exported, imported, skipped, failed := report.Totals()
	h.log.Info("migration finished", logger.Fields(
		logger.FieldProvider, req.Name,
		"exported", exported, "imported", imported, "skipped", skipped, "failed", failed,
	))
	server.RespondOK(c, report)
}
