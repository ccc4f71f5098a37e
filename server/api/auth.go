package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/server"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	auth, ok := domain(c, h.backend.Auth)
	if !ok {
		return
	}
	var reg model.Registration
	if !bind(c, &reg) {
		return
	}
	if reg.Role == model.RoleAdmin {
		server.RespondWithError(c, errors.Forbidden("admin accounts are granted, not registered"))
		return
	}
	session, err := auth.Register(c.Request.Context(), reg)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, session)
}

func (h *Handler) login(c *gin.Context) {
	auth, ok := domain(c, h.backend.Auth)
	if !ok {
		return
	}
	var req credentials
	if !bind(c, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		server.RespondWithError(c, errors.MissingField("email and password"))
		return
	}
	session, err := auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, session)
}

// logout ends the session of the request's bearer token.
func (h *Handler) logout(c *gin.Context) {
	auth, ok := domain(c, h.backend.Auth)
	if !ok {
		return
	}
	if err := auth.Logout(c.Request.Context()); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

// currentUser answers with the profile behind the request's bearer token.
func (h *Handler) currentUser(c *gin.Context) {
	auth, ok := domain(c, h.backend.Auth)
	if !ok {
		return
	}
	user := auth.CurrentUser(c.Request.Context())
	if user == nil {
		server.RespondWithError(c, errors.Unauthorized(""))
		return
	}
	server.RespondOK(c, user)
}
