package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/server"
	"github.com/kbukum/glowbook/server/middleware"
	"github.com/kbukum/glowbook/validation"
)

func (h *Handler) submitSalonRequest(c *gin.Context) {
	admin, ok := domain(c, h.backend.Admin)
	if !ok {
		return
	}
	var req model.SalonRequest
	if !bind(c, &req) {
		return
	}
	created, err := admin.SubmitRequest(c.Request.Context(), req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, created)
}

func (h *Handler) salonRequests(c *gin.Context) {
	admin, ok := domain(c, h.backend.Admin)
	if !ok {
		return
	}
	status := model.SalonRequestStatus(c.Query("status"))
	if status != "" {
		if err := validation.Var("status", string(status), "oneof=pending approved rejected"); err != nil {
			server.RespondWithError(c, err)
			return
		}
	}
	server.RespondList(c, admin.Requests(c.Request.Context(), status))
}

func (h *Handler) approveSalonRequest(c *gin.Context) {
	admin, ok := domain(c, h.backend.Admin)
	if !ok {
		return
	}
	id := c.Param("id")
	salon, err := admin.Approve(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("salon request approved", logger.Fields(logger.FieldRecordID, id, "salon_id", salon.ID))
	server.RespondCreated(c, salon)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectSalonRequest(c *gin.Context) {
	admin, ok := domain(c, h.backend.Admin)
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	rejected, err := admin.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, rejected)
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

func (h *Handler) setUserRole(c *gin.Context) {
	admin, ok := domain(c, h.backend.Admin)
	if !ok {
		return
	}
	var req roleRequest
	if !bind(c, &req) {
		return
	}
	id := c.Param("id")
	profile, err := admin.SetRole(c.Request.Context(), id, req.Role)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("user role changed", logger.Fields(logger.FieldRecordID, id, "role", req.Role, "by", c.GetString(middleware.ClaimSubject)))
	server.RespondOK(c, profile)
}

func (h *Handler) stats(c *gin.Context) {
	admin, ok := domain(c, h.backend.Admin)
	if !ok {
		return
	}
	server.RespondOK(c, admin.Stats(c.Request.Context()))
}
