package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/server"
)

func (h *Handler) bookAppointment(c *gin.Context) {
	appointments, ok := domain(c, h.backend.Appointments)
	if !ok {
		return
	}
	var appt model.Appointment
	if !bind(c, &appt) {
		return
	}
	booked, err := appointments.Book(c.Request.Context(), appt)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("appointment booked", logger.Fields(logger.FieldRecordID, booked.ID, "salon_id", booked.SalonID))
	server.RespondCreated(c, booked)
}

func (h *Handler) cancelAppointment(c *gin.Context) {
	appointments, ok := domain(c, h.backend.Appointments)
	if !ok {
		return
	}
	appt, err := appointments.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, appt)
}

type statusRequest struct {
	Status model.AppointmentStatus `json:"status"`
}

func (h *Handler) updateAppointmentStatus(c *gin.Context) {
	appointments, ok := domain(c, h.backend.Appointments)
	if !ok {
		return
	}
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	if req.Status == "" {
		server.RespondWithError(c, errors.MissingField("status"))
		return
	}
	appt, err := appointments.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, appt)
}

func (h *Handler) userAppointments(c *gin.Context) {
	appointments, ok := domain(c, h.backend.Appointments)
	if !ok {
		return
	}
	server.RespondList(c, appointments.ForUser(c.Request.Context(), c.Param("id")))
}
