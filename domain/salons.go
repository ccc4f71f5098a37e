package domain

import (
	"context"
	"strings"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/model"
)

var salonSearchFields = []string{"name", "description", "city", "address"}

type salons struct{ *Set }

func (s salons) All(ctx context.Context) []model.Salon {
	rows := s.list(ctx, model.TableSalons, cloud.Filters{"isActive": true}, ordered("rating", true))
	return model.DecodeAll[model.Salon](rows)
}

func (s salons) ByID(ctx context.Context, id string) *model.Salon {
	return model.Decode[model.Salon](s.read(ctx, model.TableSalons, id))
}

func (s salons) ByCity(ctx context.Context, city string) []model.Salon {
	rows := s.list(ctx, model.TableSalons, cloud.Filters{"city": city, "isActive": true}, ordered("rating", true))
	return model.DecodeAll[model.Salon](rows)
}

func (s salons) ByOwner(ctx context.Context, ownerID string) []model.Salon {
	rows := s.list(ctx, model.TableSalons, cloud.Filters{"ownerId": ownerID}, ordered("name", false))
	return model.DecodeAll[model.Salon](rows)
}

// Search matches term against name, description, city and address and
// keeps active salons only.
func (s salons) Search(ctx context.Context, term string) []model.Salon {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.All(ctx)
	}
	found := model.DecodeAll[model.Salon](s.search(ctx, model.TableSalons, term, salonSearchFields))
	out := found[:0]
	for _, salon := range found {
		if salon.IsActive {
			out = append(out, salon)
		}
	}
	return out
}

func (s salons) Create(ctx context.Context, salon model.Salon) (*model.Salon, error) {
	return typed[model.Salon](s.create(ctx, model.TableSalons, salon))
}

func (s salons) Update(ctx context.Context, id string, data model.Record) (*model.Salon, error) {
	return typed[model.Salon](s.update(ctx, model.TableSalons, id, data, true))
}

func (s salons) Delete(ctx context.Context, id string) error {
	return s.delete(ctx, model.TableSalons, id)
}

type services struct{ *Set }

func (s services) ForSalon(ctx context.Context, salonID string) []model.Service {
	rows := s.list(ctx, model.TableServices, cloud.Filters{"salonId": salonID, "isActive": true}, ordered("name", false))
	return model.DecodeAll[model.Service](rows)
}

func (s services) ByID(ctx context.Context, id string) *model.Service {
	return model.Decode[model.Service](s.read(ctx, model.TableServices, id))
}

func (s services) Create(ctx context.Context, svc model.Service) (*model.Service, error) {
	return typed[model.Service](s.create(ctx, model.TableServices, svc))
}

func (s services) Update(ctx context.Context, id string, data model.Record) (*model.Service, error) {
	return typed[model.Service](s.update(ctx, model.TableServices, id, data, false))
}

func (s services) Delete(ctx context.Context, id string) error {
	return s.delete(ctx, model.TableServices, id)
}
