package domain

import (
	"context"
	"time"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/model"
)

type news struct{ *Set }

func (n news) Published(ctx context.Context) []model.NewsItem {
	rows := n.list(ctx, model.TableNews, cloud.Filters{"published": true}, ordered("publishedAt", true))
	return model.DecodeAll[model.NewsItem](rows)
}

func (n news) All(ctx context.Context) []model.NewsItem {
	rows := n.list(ctx, model.TableNews, nil, ordered("createdAt", true))
	return model.DecodeAll[model.NewsItem](rows)
}

func (n news) ByID(ctx context.Context, id string) *model.NewsItem {
	return model.Decode[model.NewsItem](n.read(ctx, model.TableNews, id))
}

func (n news) Create(ctx context.Context, item model.NewsItem) (*model.NewsItem, error) {
	if item.Published && item.PublishedAt.IsZero() {
		item.PublishedAt = n.timestamp()
	}
	return typed[model.NewsItem](n.create(ctx, model.TableNews, item))
}

// Update stamps publishedAt when an item is published without one.
func (n news) Update(ctx context.Context, id string, data model.Record) (*model.NewsItem, error) {
	if published, _ := data["published"].(bool); published {
		if _, ok := data["publishedAt"]; !ok {
			data = data.Clone()
			data["publishedAt"] = n.timestamp().Format(time.RFC3339Nano)
		}
	}
	return typed[model.NewsItem](n.update(ctx, model.TableNews, id, data, false))
}

func (n news) Delete(ctx context.Context, id string) error {
	return n.delete(ctx, model.TableNews, id)
}

type promotions struct{ *Set }

func (p promotions) Active(ctx context.Context, now time.Time) []model.Promotion {
	rows := p.list(ctx, model.TablePromotions, cloud.Filters{"isActive": true}, ordered("startsAt", true))
	all := model.DecodeAll[model.Promotion](rows)
	out := all[:0]
	for _, promo := range all {
		if promo.ActiveAt(now) {
			out = append(out, promo)
		}
	}
	return out
}

func (p promotions) ForSalon(ctx context.Context, salonID string) []model.Promotion {
	rows := p.list(ctx, model.TablePromotions, cloud.Filters{"salonId": salonID}, ordered("startsAt", true))
	return model.DecodeAll[model.Promotion](rows)
}

func (p promotions) Create(ctx context.Context, promo model.Promotion) (*model.Promotion, error) {
	if promo.StartsAt.IsZero() {
		promo.StartsAt = p.timestamp()
	}
	return typed[model.Promotion](p.create(ctx, model.TablePromotions, promo))
}

func (p promotions) Update(ctx context.Context, id string, data model.Record) (*model.Promotion, error) {
	return typed[model.Promotion](p.update(ctx, model.TablePromotions, id, data, false))
}

func (p promotions) Delete(ctx context.Context, id string) error {
	return p.delete(ctx, model.TablePromotions, id)
}
