// Package model defines the provider-agnostic records of the salon
// marketplace. Field names are camelCase on the wire regardless of backend.
package model

import "time"

// Record is a generic row keyed by camelCase field names.
type Record map[string]any

// ID returns the record's "id" field as a string, or "".
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return stringify(v)
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Snapshot is a table-by-table dump used for migration.
type Snapshot map[string][]Record

// Count returns the total number of records across all tables.
func (s Snapshot) Count() int {
	n := 0
	for _, rows := range s {
		n += len(rows)
	}
	return n
}

// Tables is the fixed list of entity tables, in export order. Parents come
// before children so imports satisfy foreign keys.
var Tables = []string{
	TableProfiles,
	TableSalons,
	TableServices,
	TableAppointments,
	TableReviews,
	TableNews,
	TablePromotions,
	TableSalonRequests,
}

const (
	TableProfiles      = "profiles"
	TableSalons        = "salons"
	TableServices      = "services"
	TableAppointments  = "appointments"
	TableReviews       = "reviews"
	TableNews          = "news"
	TablePromotions    = "promotions"
	TableSalonRequests = "salon_requests"
)

// KnownTable reports whether name is one of Tables.
func KnownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

type Salon struct {
	ID           string            `json:"id"`
	Name         string            `json:"name" validate:"required,max=200"`
	Description  string            `json:"description,omitempty"`
	Address      string            `json:"address" validate:"required"`
	City         string            `json:"city" validate:"required"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty" validate:"omitempty,email"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	OwnerID      string            `json:"ownerId,omitempty"`
	Rating       float64           `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount  int               `json:"reviewCount" validate:"gte=0"`
	OpeningHours map[string]string `json:"openingHours,omitempty"`
	Categories   []string          `json:"categories,omitempty"`
	IsActive     bool              `json:"isActive"`
	CreatedAt    time.Time         `json:"createdAt,omitzero"`
	UpdatedAt    time.Time         `json:"updatedAt,omitzero"`
}

type Service struct {
	ID              string    `json:"id"`
	SalonID         string    `json:"salonId" validate:"required"`
	Name            string    `json:"name" validate:"required"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Price           float64   `json:"price" validate:"gte=0"`
	DurationMinutes int       `json:"durationMinutes" validate:"gte=0"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

type Review struct {
	ID            string    `json:"id"`
	SalonID       string    `json:"salonId" validate:"required"`
	UserID        string    `json:"userId" validate:"required"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	Rating        int       `json:"rating" validate:"min=1,max=5"`
	Comment       string    `json:"comment,omitempty" validate:"max=2000"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title" validate:"required"`
	Summary     string    `json:"summary,omitempty"`
	Content     string    `json:"content,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	AuthorID    string    `json:"authorId,omitempty"`
	Published   bool      `json:"published"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

type Promotion struct {
	ID              string    `json:"id"`
	SalonID         string    `json:"salonId" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description,omitempty"`
	DiscountPercent float64   `json:"discountPercent" validate:"gte=0,lte=100"`
	Code            string    `json:"code,omitempty"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt,omitzero"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

// ActiveAt reports whether the promotion applies at t. A zero EndsAt is open-ended.
func (p Promotion) ActiveAt(t time.Time) bool {
	if !p.IsActive || t.Before(p.StartsAt) {
		return false
	}
	return p.EndsAt.IsZero() || !t.After(p.EndsAt)
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email" validate:"required,email"`
	FullName  string    `json:"fullName,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Role      Role      `json:"role" validate:"omitempty,oneof=customer owner admin"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Registration is the input of Auth.Register.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=customer owner admin"`
}

// Session is the result of a successful login or registration.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	User         *Profile  `json:"user"`
}

// Stats summarizes the marketplace for the admin dashboard.
type Stats struct {
	Salons          int `json:"salons"`
	ActiveSalons    int `json:"activeSalons"`
	Users           int `json:"users"`
	Appointments    int `json:"appointments"`
	PendingRequests int `json:"pendingRequests"`
	Reviews         int `json:"reviews"`
}
