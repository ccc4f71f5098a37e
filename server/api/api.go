// Package api exposes the marketplace and provider administration routes
// over the cloud facade.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/server"
	"github.com/kbukum/glowbook/server/middleware"
	"github.com/kbukum/glowbook/sse"
)

// Backend is the part of *cloud.Service the handlers use.
type Backend interface {
	ProviderStatus() cloud.Status
	SwitchProvider(ctx context.Context, name string, credentials map[string]string) error
	MigrateToProvider(ctx context.Context, name string, credentials map[string]string) (*cloud.MigrationReport, error)
	Auth() (cloud.Auth, error)
	Salons() (cloud.Salons, error)
	Services() (cloud.Services, error)
	Appointments() (cloud.Appointments, error)
	Reviews() (cloud.Reviews, error)
	News() (cloud.News, error)
	Promotions() (cloud.Promotions, error)
	Admin() (cloud.Admin, error)
	Subscribe(ctx context.Context, table string, filters cloud.Filters, handler func(cloud.Change)) (cloud.Unsubscribe, error)
}

var _ Backend = (*cloud.Service)(nil)

// Handler serves the /api routes.
type Handler struct {
	backend   Backend
	log       *logger.Logger
	now       func() time.Time
	keepAlive time.Duration
	operator  []byte
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces time.Now for the active-promotion window.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithKeepAlive sets the keep-alive interval of change streams.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) { h.keepAlive = d }
}

// WithOperatorSecret admits operator tokens signed with secret on the
// provider and admin routes.
func WithOperatorSecret(secret string) Option {
	return func(h *Handler) { h.operator = []byte(secret) }
}

// New creates a Handler over backend.
func New(backend Backend, log *logger.Logger, opts ...Option) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{backend: backend, log: log.WithComponent("api"), now: time.Now, keepAlive: sse.DefaultKeepAlive}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route under /api on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api", h.requestSession)
	admin := []gin.HandlerFunc{
		middleware.Auth(middleware.AuthConfig{
			TokenValidator: middleware.AnyToken(middleware.OperatorTokens(h.operator), h.userToken),
			Roles:          []string{string(model.RoleAdmin)},
		}),
		h.operatorScope,
	}

	p := g.Group("/provider", admin...)
	p.GET("/status", h.providerStatus)
	p.POST("/switch", h.switchProvider)
	p.POST("/migrate", h.migrate)

	a := g.Group("/auth")
	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/logout", h.logout)
	a.GET("/me", h.currentUser)

	s := g.Group("/salons")
	s.GET("", h.listSalons)
	s.GET("/:id", h.getSalon)
	s.GET("/:id/services", h.salonServices)
	s.GET("/:id/reviews", h.salonReviews)
	s.POST("/:id/reviews", h.createReview)
	s.GET("/:id/promotions", h.salonPromotions)

	ap := g.Group("/appointments")
	ap.POST("", h.bookAppointment)
	ap.POST("/:id/cancel", h.cancelAppointment)
	ap.PATCH("/:id/status", h.updateAppointmentStatus)
	g.GET("/users/:id/appointments", h.userAppointments)

	g.GET("/news", h.publishedNews)
	g.GET("/promotions/active", h.activePromotions)

	g.GET("/changes/:table", h.streamChanges)

	g.POST("/admin/salon-requests", h.submitSalonRequest)
	ad := g.Group("/admin", admin...)
	ad.GET("/salon-requests", h.salonRequests)
	ad.POST("/salon-requests/:id/approve", h.approveSalonRequest)
	ad.POST("/salon-requests/:id/reject", h.rejectSalonRequest)
	ad.GET("/stats", h.stats)
	ad.PUT("/users/:id/role", h.setUserRole)
}

// requestSession scopes the request to the caller's bearer token so
// provider calls never see another client's session.
func (h *Handler) requestSession(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		server.RespondWithError(c, errors.Unauthorized("Invalid authorization header format"))
		return
	}
	c.Request = c.Request.WithContext(cloud.WithRequestSession(c.Request.Context(), token))
	c.Next()
}

// userToken resolves token to a user of the active provider.
func (h *Handler) userToken(ctx context.Context, token string) (map[string]any, error) {
	auth, err := h.backend.Auth()
	if err != nil {
		return nil, err
	}
	user := auth.CurrentUser(cloud.WithRequestSession(ctx, token))
	if user == nil {
		return nil, errors.Unauthorized("unknown session")
	}
	return map[string]any{middleware.ClaimSubject: user.ID, middleware.ClaimRole: string(user.Role)}, nil
}

// operatorScope runs operator requests under the provider's own
// credentials, since backends cannot verify operator tokens.
func (h *Handler) operatorScope(c *gin.Context) {
	if c.GetString(middleware.ClaimIssuer) == middleware.OperatorIssuer {
		c.Request = c.Request.WithContext(cloud.WithRequestSession(c.Request.Context(), ""))
	}
	c.Next()
}

// bind decodes the JSON body into v.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return false
	}
	return true
}

// domain resolves a facade accessor, answering with its error when the
// service has no provider.
func domain[T any](c *gin.Context, get func() (T, error)) (T, bool) {
	v, err := get()
	if err != nil {
		server.RespondWithError(c, err)
		var zero T
		return zero, false
	}
	return v, true
}
