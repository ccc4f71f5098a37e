package domain

import (
	"context"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

type appointments struct{ *Set }

func (a appointments) ForUser(ctx context.Context, userID string) []model.Appointment {
	rows := a.list(ctx, model.TableAppointments, cloud.Filters{"userId": userID}, ordered("date", true))
	return model.DecodeAll[model.Appointment](rows)
}

func (a appointments) ForSalon(ctx context.Context, salonID string) []model.Appointment {
	rows := a.list(ctx, model.TableAppointments, cloud.Filters{"salonId": salonID}, ordered("date", true))
	return model.DecodeAll[model.Appointment](rows)
}

func (a appointments) ByID(ctx context.Context, id string) *model.Appointment {
	return model.Decode[model.Appointment](a.read(ctx, model.TableAppointments, id))
}

// Book stores a new pending appointment. The service must belong to the
// salon; its price is used when no total is given.
func (a appointments) Book(ctx context.Context, appt model.Appointment) (*model.Appointment, error) {
	if err := validation.Validate(appt); err != nil {
		return nil, err
	}
	rec, err := a.db.Read(ctx, model.TableServices, appt.ServiceID)
	if err != nil {
		return nil, err
	}
	svc := model.Decode[model.Service](rec)
	if svc == nil || svc.SalonID != appt.SalonID {
		return nil, errors.InvalidInput("serviceId", "service is not offered by this salon")
	}
	if appt.TotalPrice == 0 {
		appt.TotalPrice = svc.Price
	}
	appt.Status = model.AppointmentPending
	return typed[model.Appointment](a.create(ctx, model.TableAppointments, appt))
}

// UpdateStatus moves an appointment to status if the transition is allowed.
func (a appointments) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) (*model.Appointment, error) {
	rec, err := a.db.Read(ctx, model.TableAppointments, id)
	if err != nil {
		return nil, err
	}
	current := model.Decode[model.Appointment](rec)
	if current == nil {
		return nil, errors.Internal(nil).WithDetail("reason", "stored appointment is undecodable")
	}
	if err := model.CheckTransition(current.Status, status); err != nil {
		return nil, err
	}
	return typed[model.Appointment](a.update(ctx, model.TableAppointments, id, model.Record{"status": string(status)}, true))
}

func (a appointments) Cancel(ctx context.Context, id string) (*model.Appointment, error) {
	return a.UpdateStatus(ctx, id, model.AppointmentCancelled)
}
