// Package cloud defines the backend provider contract, the registry of
// provider factories and the Service facade the application talks to.
package cloud

import (
	"context"
	"io"
	"time"

	"github.com/kbukum/glowbook/model"
)

// Registered provider names.
const (
	NameSupabase = "supabase"
	NameFirebase = "firebase"
	NameREST     = "rest"
	NameLocal    = "local"
)

// ProviderConfig identifies a backend and the credentials to connect with.
// Providers copy what they need during Initialize.
type ProviderConfig struct {
	Name        string            `json:"name"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// ConnectionStatus is a provider's view of its own connectivity.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

// Provider is one backend implementation of the full data contract.
//
// Optional capabilities are discovered with type assertions: Exporter,
// Importer, Subscriber and Closer.
type Provider interface {
	Name() string
	Initialize(ctx context.Context, credentials map[string]string) error
	IsConnected() bool
	ConnectionStatus() ConnectionStatus

	Auth() Auth
	Database() Database
	Storage() Storage

	Salons() Salons
	Services() Services
	Appointments() Appointments
	Reviews() Reviews
	News() News
	Promotions() Promotions
	Admin() Admin
	Profiles() Profiles
}

// Factory creates an uninitialized provider.
type Factory func() (Provider, error)

// Filters are equality constraints on camelCase field names.
type Filters map[string]any

// ListOptions control ordering and paging of List.
type ListOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Database is the generic table store every domain operation is built on.
// Records use camelCase field names; providers translate to their native
// column names. Read returns a NOT_FOUND error for missing ids.
type Database interface {
	Create(ctx context.Context, table string, data model.Record) (model.Record, error)
	Read(ctx context.Context, table, id string) (model.Record, error)
	Update(ctx context.Context, table, id string, data model.Record) (model.Record, error)
	Delete(ctx context.Context, table, id string) error
	List(ctx context.Context, table string, filters Filters, opts *ListOptions) ([]model.Record, error)
	// Search returns rows where any of fields contains term, case-insensitively.
	Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error)
}

// Auth manages user sessions. CurrentUser and Profile return nil when the
// user is unknown or the backend is unavailable.
type Auth interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Register(ctx context.Context, reg model.Registration) (*model.Session, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) *model.Profile
	UpdateProfile(ctx context.Context, id string, data model.Record) (*model.Profile, error)
	Profile(ctx context.Context, id string) *model.Profile
}

// Storage stores files in buckets.
type Storage interface {
	// Upload stores body at bucket/path and returns its public URL.
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Delete(ctx context.Context, bucket, path string) error
	PublicURL(bucket, path string) string
	CreateBucket(ctx context.Context, name string, public bool) error
}

// The domain interfaces below follow one failure rule: reads return nil or
// an empty slice when the backend fails, writes return the error.

type Salons interface {
	All(ctx context.Context) []model.Salon
	ByID(ctx context.Context, id string) *model.Salon
	ByCity(ctx context.Context, city string) []model.Salon
	ByOwner(ctx context.Context, ownerID string) []model.Salon
	Search(ctx context.Context, term string) []model.Salon
	Create(ctx context.Context, s model.Salon) (*model.Salon, error)
	Update(ctx context.Context, id string, data model.Record) (*model.Salon, error)
	Delete(ctx context.Context, id string) error
}

type Services interface {
	ForSalon(ctx context.Context, salonID string) []model.Service
	ByID(ctx context.Context, id string) *model.Service
	Create(ctx context.Context, s model.Service) (*model.Service, error)
	Update(ctx context.Context, id string, data model.Record) (*model.Service, error)
	Delete(ctx context.Context, id string) error
}

type Appointments interface {
	ForUser(ctx context.Context, userID string) []model.Appointment
	ForSalon(ctx context.Context, salonID string) []model.Appointment
	ByID(ctx context.Context, id string) *model.Appointment
	Book(ctx context.Context, a model.Appointment) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) (*model.Appointment, error)
	Cancel(ctx context.Context, id string) (*model.Appointment, error)
}

type Reviews interface {
	ForSalon(ctx context.Context, salonID string) []model.Review
	ForUser(ctx context.Context, userID string) []model.Review
	// Create stores the review and refreshes the salon's rating and review count.
	Create(ctx context.Context, r model.Review) (*model.Review, error)
	Delete(ctx context.Context, id string) error
}

type News interface {
	// Published returns published items, newest first.
	Published(ctx context.Context) []model.NewsItem
	All(ctx context.Context) []model.NewsItem
	ByID(ctx context.Context, id string) *model.NewsItem
	Create(ctx context.Context, n model.NewsItem) (*model.NewsItem, error)
	Update(ctx context.Context, id string, data model.Record) (*model.NewsItem, error)
	Delete(ctx context.Context, id string) error
}

type Promotions interface {
	// Active returns promotions running at now.
	Active(ctx context.Context, now time.Time) []model.Promotion
	ForSalon(ctx context.Context, salonID string) []model.Promotion
	Create(ctx context.Context, p model.Promotion) (*model.Promotion, error)
	Update(ctx context.Context, id string, data model.Record) (*model.Promotion, error)
	Delete(ctx context.Context, id string) error
}

type Admin interface {
	SubmitRequest(ctx context.Context, r model.SalonRequest) (*model.SalonRequest, error)
	// Requests lists salon requests; an empty status lists all of them.
	Requests(ctx context.Context, status model.SalonRequestStatus) []model.SalonRequest
	// Approve creates the salon described by a pending request.
	Approve(ctx context.Context, requestID string) (*model.Salon, error)
	Reject(ctx context.Context, requestID, reason string) (*model.SalonRequest, error)
	SetRole(ctx context.Context, userID string, role model.Role) (*model.Profile, error)
	Stats(ctx context.Context) model.Stats
}

type Profiles interface {
	ByID(ctx context.Context, id string) *model.Profile
	All(ctx context.Context) []model.Profile
	Create(ctx context.Context, p model.Profile) (*model.Profile, error)
	Update(ctx context.Context, id string, data model.Record) (*model.Profile, error)
}

// RecordFailure describes a record that could not be migrated.
type RecordFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// TableImport is the per-table result of ImportData.
type TableImport struct {
	Imported int             `json:"imported"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

// ImportReport is the result of ImportData.
type ImportReport struct {
	Tables map[string]*TableImport `json:"tables"`
}

// Exporter dumps every entity table. Tables that cannot be read are
// reported as empty.
type Exporter interface {
	ExportData(ctx context.Context) (model.Snapshot, error)
}

// Importer creates records one at a time and reports per-record failures.
type Importer interface {
	ImportData(ctx context.Context, data model.Snapshot) (*ImportReport, error)
}

// ChangeType is the kind of row change delivered to subscribers.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is one row change.
type Change struct {
	Type   ChangeType   `json:"type"`
	Table  string       `json:"table"`
	Record model.Record `json:"record,omitempty"`
	Old    model.Record `json:"old,omitempty"`
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Subscriber delivers row changes on table matching filters.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filters Filters, handler func(Change)) (Unsubscribe, error)
}

// Closer releases provider resources.
type Closer interface {
	Close(ctx context.Context) error
}
