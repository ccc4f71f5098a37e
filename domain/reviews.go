package domain

import (
	"context"
	"math"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
)

type reviews struct{ *Set }

func (r reviews) ForSalon(ctx context.Context, salonID string) []model.Review {
	rows := r.list(ctx, model.TableReviews, cloud.Filters{"salonId": salonID}, ordered("createdAt", true))
	return model.DecodeAll[model.Review](rows)
}

func (r reviews) ForUser(ctx context.Context, userID string) []model.Review {
	rows := r.list(ctx, model.TableReviews, cloud.Filters{"userId": userID}, ordered("createdAt", true))
	return model.DecodeAll[model.Review](rows)
}

func (r reviews) Create(ctx context.Context, review model.Review) (*model.Review, error) {
	out, err := typed[model.Review](r.create(ctx, model.TableReviews, review))
	if err != nil {
		return nil, err
	}
	r.refreshRating(ctx, out.SalonID)
	return out, nil
}

func (r reviews) Delete(ctx context.Context, id string) error {
	existing := model.Decode[model.Review](r.read(ctx, model.TableReviews, id))
	if err := r.delete(ctx, model.TableReviews, id); err != nil {
		return err
	}
	if existing != nil {
		r.refreshRating(ctx, existing.SalonID)
	}
	return nil
}

// refreshRating recomputes the salon's average rating. The review write has
// already succeeded, so failures are only logged.
func (r reviews) refreshRating(ctx context.Context, salonID string) {
	rows, err := r.db.List(ctx, model.TableReviews, cloud.Filters{"salonId": salonID}, nil)
	if err != nil {
		r.log.Warn("rating refresh skipped", logger.Fields("salon_id", salonID, logger.FieldError, err))
		return
	}
	all := model.DecodeAll[model.Review](rows)
	rating := 0.0
	if len(all) > 0 {
		sum := 0
		for _, rv := range all {
			sum += rv.Rating
		}
		rating = math.Round(float64(sum)/float64(len(all))*10) / 10
	}
	data := model.Record{"rating": rating, "reviewCount": len(all)}
	if _, err := r.update(ctx, model.TableSalons, salonID, data, true); err != nil {
		r.log.Warn("rating refresh failed", logger.Fields("salon_id", salonID, logger.FieldError, err))
	}
}
