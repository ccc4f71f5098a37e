package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/server"
)

// listSalons filters by ?city= or searches by ?q=; without either it lists
// every salon.
func (h *Handler) listSalons(c *gin.Context) {
	salons, ok := domain(c, h.backend.Salons)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	city := strings.TrimSpace(c.Query("city"))
	term := strings.TrimSpace(c.Query("q"))

	var out []model.Salon
	switch {
	case term != "":
		out = salons.Search(ctx, term)
		if city != "" {
			out = inCity(out, city)
		}
	case city != "":
		out = salons.ByCity(ctx, city)
	default:
		out = salons.All(ctx)
	}
	server.RespondList(c, out)
}

func inCity(salons []model.Salon, city string) []model.Salon {
	out := salons[:0]
	for _, s := range salons {
		if strings.EqualFold(s.City, city) {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handler) getSalon(c *gin.Context) {
	salons, ok := domain(c, h.backend.Salons)
	if !ok {
		return
	}
	id := c.Param("id")
	salon := salons.ByID(c.Request.Context(), id)
	if salon == nil {
		server.RespondWithError(c, errors.NotFound("salon", id))
		return
	}
	server.RespondOK(c, salon)
}

func (h *Handler) salonServices(c *gin.Context) {
	services, ok := domain(c, h.backend.Services)
	if !ok {
		return
	}
	server.RespondList(c, services.ForSalon(c.Request.Context(), c.Param("id")))
}

func (h *Handler) salonReviews(c *gin.Context) {
	reviews, ok := domain(c, h.backend.Reviews)
	if !ok {
		return
	}
	server.RespondList(c, reviews.ForSalon(c.Request.Context(), c.Param("id")))
}

func (h *Handler) createReview(c *gin.Context) {
	reviews, ok := domain(c, h.backend.Reviews)
	if !ok {
		return
	}
	var review model.Review
	if !bind(c, &review) {
		return
	}
	review.SalonID = c.Param("id")
	created, err := reviews.Create(c.Request.Context(), review)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, created)
}

func (h *Handler) salonPromotions(c *gin.Context) {
	promotions, ok := domain(c, h.backend.Promotions)
	if !ok {
		return
	}
	server.RespondList(c, promotions.ForSalon(c.Request.Context(), c.Param("id")))
}
