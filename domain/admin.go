package domain

import (
	"context"
	"time"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

type admin struct{ *Set }

func (a admin) SubmitRequest(ctx context.Context, req model.SalonRequest) (*model.SalonRequest, error) {
	req.Status = model.RequestPending
	req.RejectionReason = ""
	req.SalonID = ""
	req.ReviewedAt = time.Time{}
	return typed[model.SalonRequest](a.create(ctx, model.TableSalonRequests, req))
}

func (a admin) Requests(ctx context.Context, status model.SalonRequestStatus) []model.SalonRequest {
	var filters cloud.Filters
	if status != "" {
		filters = cloud.Filters{"status": string(status)}
	}
	rows := a.list(ctx, model.TableSalonRequests, filters, ordered("createdAt", true))
	return model.DecodeAll[model.SalonRequest](rows)
}

func (a admin) pending(ctx context.Context, id string) (*model.SalonRequest, error) {
	rec, err := a.db.Read(ctx, model.TableSalonRequests, id)
	if err != nil {
		return nil, err
	}
	req := model.Decode[model.SalonRequest](rec)
	if req == nil {
		return nil, errors.Internal(nil).WithDetail("reason", "stored salon request is undecodable")
	}
	if err := req.CheckReviewable(); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve creates the salon, marks the request approved and promotes a
// customer owner to the owner role.
func (a admin) Approve(ctx context.Context, requestID string) (*model.Salon, error) {
	req, err := a.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	salon, err := typed[model.Salon](a.create(ctx, model.TableSalons, model.Salon{
		Name:        req.SalonName,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Phone:       req.Phone,
		Email:       req.Email,
		OwnerID:     req.OwnerID,
		IsActive:    true,
	}))
	if err != nil {
		return nil, err
	}
	_, err = a.update(ctx, model.TableSalonRequests, requestID, model.Record{
		"status":     string(model.RequestApproved),
		"salonId":    salon.ID,
		"reviewedAt": a.timestamp().Format(time.RFC3339Nano),
	}, false)
	if err != nil {
		return nil, err
	}
	if owner := model.Decode[model.Profile](a.read(ctx, model.TableProfiles, req.OwnerID)); owner != nil && owner.Role == model.RoleCustomer {
		if _, err := a.SetRole(ctx, owner.ID, model.RoleOwner); err != nil {
			a.log.Warn("owner role not updated", logger.Fields("user_id", owner.ID, logger.FieldError, err))
		}
	}
	return salon, nil
}

func (a admin) Reject(ctx context.Context, requestID, reason string) (*model.SalonRequest, error) {
	if _, err := a.pending(ctx, requestID); err != nil {
		return nil, err
	}
	return typed[model.SalonRequest](a.update(ctx, model.TableSalonRequests, requestID, model.Record{
		"status":          string(model.RequestRejected),
		"rejectionReason": reason,
		"reviewedAt":      a.timestamp().Format(time.RFC3339Nano),
	}, false))
}

func (a admin) SetRole(ctx context.Context, userID string, role model.Role) (*model.Profile, error) {
	if err := validation.Var("role", string(role), "required,oneof=customer owner admin"); err != nil {
		return nil, err
	}
	return typed[model.Profile](a.update(ctx, model.TableProfiles, userID, model.Record{"role": string(role)}, true))
}

// Stats counts rows per table. Tables that cannot be read count as zero.
func (a admin) Stats(ctx context.Context) model.Stats {
	st := model.Stats{
		Salons:          a.count(ctx, model.TableSalons, nil),
		ActiveSalons:    a.count(ctx, model.TableSalons, cloud.Filters{"isActive": true}),
		Users:           a.count(ctx, model.TableProfiles, nil),
		Appointments:    a.count(ctx, model.TableAppointments, nil),
		Reviews:         a.count(ctx, model.TableReviews, nil),
		PendingRequests: a.count(ctx, model.TableSalonRequests, cloud.Filters{"status": string(model.RequestPending)}),
	}
	return st
}

type profiles struct{ *Set }

func (p profiles) ByID(ctx context.Context, id string) *model.Profile {
	return model.Decode[model.Profile](p.read(ctx, model.TableProfiles, id))
}

func (p profiles) All(ctx context.Context) []model.Profile {
	rows := p.list(ctx, model.TableProfiles, nil, ordered("createdAt", true))
	return model.DecodeAll[model.Profile](rows)
}

// Create stores a profile. Profiles share the id of the auth account.
func (p profiles) Create(ctx context.Context, profile model.Profile) (*model.Profile, error) {
	if profile.Role == "" {
		profile.Role = model.RoleCustomer
	}
	return typed[model.Profile](p.create(ctx, model.TableProfiles, profile))
}

func (p profiles) Update(ctx context.Context, id string, data model.Record) (*model.Profile, error) {
	if role, ok := data["role"].(string); ok {
		if err := validation.Var("role", role, "oneof=customer owner admin"); err != nil {
			return nil, err
		}
	}
	return typed[model.Profile](p.update(ctx, model.TableProfiles, id, data, true))
}
