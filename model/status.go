package model

import (
	"fmt"
	"time"

	"github.com/kbukum/glowbook/errors"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:   {AppointmentConfirmed, AppointmentCancelled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled},
}

// CanTransition reports whether an appointment may move from s to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// CheckTransition returns a CONFLICT error when the move is not allowed.
func CheckTransition(from, to AppointmentStatus) error {
	if from.CanTransition(to) {
		return nil
	}
	return errors.Conflict(fmt.Sprintf("appointment cannot move from %s to %s", from, to)).
		WithDetail("from", string(from)).
		WithDetail("to", string(to))
}

type Appointment struct {
	ID         string            `json:"id"`
	SalonID    string            `json:"salonId" validate:"required"`
	ServiceID  string            `json:"serviceId" validate:"required"`
	UserID     string            `json:"userId" validate:"required"`
	StaffName  string            `json:"staffName,omitempty"`
	Date       string            `json:"date" validate:"required,ymd"`
	Time       string            `json:"time" validate:"required,hhmm"`
	Status     AppointmentStatus `json:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Notes      string            `json:"notes,omitempty" validate:"max=1000"`
	TotalPrice float64           `json:"totalPrice" validate:"gte=0"`
	CreatedAt  time.Time         `json:"createdAt,omitzero"`
	UpdatedAt  time.Time         `json:"updatedAt,omitzero"`
}

type SalonRequestStatus string

const (
	RequestPending  SalonRequestStatus = "pending"
	RequestApproved SalonRequestStatus = "approved"
	RequestRejected SalonRequestStatus = "rejected"
)

// SalonRequest is an owner's application to list a salon, reviewed by an admin.
type SalonRequest struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"ownerId" validate:"required"`
	SalonName       string             `json:"salonName" validate:"required"`
	Address         string             `json:"address" validate:"required"`
	City            string             `json:"city" validate:"required"`
	Phone           string             `json:"phone,omitempty"`
	Email           string             `json:"email,omitempty" validate:"omitempty,email"`
	Description     string             `json:"description,omitempty"`
	Status          SalonRequestStatus `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	RejectionReason string             `json:"rejectionReason,omitempty"`
	SalonID         string             `json:"salonId,omitempty"`
	CreatedAt       time.Time          `json:"createdAt,omitzero"`
	ReviewedAt      time.Time          `json:"reviewedAt,omitzero"`
}

// CheckReviewable returns a CONFLICT error unless the request is still pending.
func (r SalonRequest) CheckReviewable() error {
	if r.Status == RequestPending || r.Status == "" {
		return nil
	}
	return errors.Conflict(fmt.Sprintf("salon request %s is already %s", r.ID, r.Status)).
		WithDetail("status", string(r.Status))
}
