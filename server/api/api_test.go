package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/providers"
	"github.com/kbukum/glowbook/server"
	"github.com/kbukum/glowbook/server/api"
	"github.com/kbukum/glowbook/server/middleware"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const operatorSecret = "operator-secret-0123456789abcdef"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  *server.Meta    `json:"meta"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newEngine(t *testing.T, backend api.Backend) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := server.Config{}
	cfg.ApplyDefaults()
	srv := server.New(cfg, logger.Nop())
	srv.ApplyMiddleware()
	api.New(backend, logger.Nop(),
		api.WithClock(func() time.Time { return now }),
		api.WithOperatorSecret(operatorSecret),
	).Register(srv.Engine())
	return srv.Engine()
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.IssueOperatorToken([]byte(operatorSecret), "ops", string(model.RoleAdmin), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func newService(t *testing.T) *cloud.Service {
	t.Helper()
	dir := t.TempDir()
	cfg := cloud.Config{
		Priority: []string{cloud.NameLocal},
		Providers: map[string]map[string]string{
			cloud.NameLocal: {
				"dsn":          filepath.Join(dir, "glowbook.db"),
				"storage_path": filepath.Join(dir, "files"),
				"jwt_secret":   "test-secret",
				"db_log_level": "silent",
			},
		},
	}
	svc := cloud.NewService(cfg, providers.Source(nil, nil), nil)
	ctx := context.Background()
	if err := svc.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Stop(ctx) })
	return svc
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	return doAs(t, h, "", method, path, body)
}

// doAs sends the request with token as its bearer.
func doAs(t *testing.T, h http.Handler, token, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid body %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", env.Data, err)
	}
	return v
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func seedSalon(t *testing.T, svc *cloud.Service) (*model.Salon, *model.Service) {
	t.Helper()
	ctx := context.Background()
	salons, err := svc.Salons()
	if err != nil {
		t.Fatal(err)
	}
	salon, err := salons.Create(ctx, model.Salon{Name: "Glow Studio", Address: "Main St 1", City: "Istanbul", IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	services, err := svc.Services()
	if err != nil {
		t.Fatal(err)
	}
	cut, err := services.Create(ctx, model.Service{SalonID: salon.ID, Name: "Haircut", Price: 40, DurationMinutes: 45, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	return salon, cut
}

func TestProviderStatus(t *testing.T) {
	svc := newService(t)
	h := newEngine(t, svc)

	code, env := doAs(t, h, operatorToken(t), http.MethodGet, "/api/provider/status", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	st := decode[cloud.Status](t, env)
	if st.Current != cloud.NameLocal || !st.Connected || st.State != cloud.StateReady {
		t.Errorf("status = %+v", st)
	}
}

func TestSwitchProviderValidation(t *testing.T) {
	h := newEngine(t, newService(t))

	tests := []struct {
		name string
		body any
		code int
		want string
	}{
		{"missing name", map[string]any{}, http.StatusBadRequest, "MISSING_FIELD"},
		{"unknown provider", map[string]any{"name": "nope"}, http.StatusBadRequest, "PROVIDER_NOT_REGISTERED"},
		{"malformed body", "not an object", http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := doAs(t, h, operatorToken(t), http.MethodPost, "/api/provider/switch", tt.body)
			if code != tt.code || errorCode(env) != tt.want {
				t.Errorf("got %d %s, want %d %s", code, errorCode(env), tt.code, tt.want)
			}
		})
	}
}

func TestMigrateToSecondLocalStore(t *testing.T) {
	svc := newService(t)
	seedSalon(t, svc)
	h := newEngine(t, svc)

	dir := t.TempDir()
	code, env := doAs(t, h, operatorToken(t), http.MethodPost, "/api/provider/migrate", map[string]any{
		"name": cloud.NameLocal,
		"credentials": map[string]string{
			"dsn":          filepath.Join(dir, "target.db"),
			"storage_path": filepath.Join(dir, "files"),
			"db_log_level": "silent",
		},
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d %+v", code, env.Error)
	}
	report := decode[cloud.MigrationReport](t, env)
	if got := report.Tables[model.TableSalons]; got == nil || got.Imported != 1 {
		t.Errorf("salons = %+v", got)
	}
	if got := report.Tables[model.TableServices]; got == nil || got.Imported != 1 {
		t.Errorf("services = %+v", got)
	}

	code, env = do(t, h, http.MethodGet, "/api/salons", nil)
	if code != http.StatusOK || env.Meta == nil || env.Meta.Total != 1 {
		t.Errorf("salons after migration: %d %+v", code, env.Meta)
	}
}

func TestSalonRoutes(t *testing.T) {
	svc := newService(t)
	salon, _ := seedSalon(t, svc)
	h := newEngine(t, svc)

	lists := []struct {
		path string
		want int
	}{
		{"/api/salons", 1},
		{"/api/salons?city=Istanbul", 1},
		{"/api/salons?city=Ankara", 0},
		{"/api/salons?q=glow", 1},
		{"/api/salons?q=glow&city=Ankara", 0},
		{"/api/salons?q=barber", 0},
		{"/api/salons/" + salon.ID + "/services", 1},
		{"/api/salons/" + salon.ID + "/reviews", 0},
		{"/api/salons/" + salon.ID + "/promotions", 0},
	}
	for _, tt := range lists {
		t.Run(tt.path, func(t *testing.T) {
			code, env := do(t, h, http.MethodGet, tt.path, nil)
			if code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if env.Meta == nil || env.Meta.Total != tt.want {
				t.Errorf("meta = %+v, want total %d", env.Meta, tt.want)
			}
			if string(env.Data) == "null" {
				t.Error("empty lists must be sent as []")
			}
		})
	}

	code, env := do(t, h, http.MethodGet, "/api/salons/"+salon.ID, nil)
	if code != http.StatusOK {
		t.Fatalf("get salon: %d", code)
	}
	if got := decode[model.Salon](t, env); got.Name != "Glow Studio" {
		t.Errorf("salon = %+v", got)
	}

	code, env = do(t, h, http.MethodGet, "/api/salons/missing", nil)
	if code != http.StatusNotFound || errorCode(env) != "NOT_FOUND" {
		t.Errorf("missing salon: %d %s", code, errorCode(env))
	}
}

func TestReviewUpdatesRating(t *testing.T) {
	svc := newService(t)
	salon, _ := seedSalon(t, svc)
	h := newEngine(t, svc)

	path := "/api/salons/" + salon.ID + "/reviews"
	if code, env := do(t, h, http.MethodPost, path, map[string]any{"userId": "u1", "rating": 4}); code != http.StatusCreated {
		t.Fatalf("create review: %d %+v", code, env.Error)
	}
	if code, env := do(t, h, http.MethodPost, path, map[string]any{"userId": "u1", "rating": 9}); code != http.StatusBadRequest {
		t.Errorf("out of range rating: %d %+v", code, env.Error)
	}

	_, env := do(t, h, http.MethodGet, "/api/salons/"+salon.ID, nil)
	got := decode[model.Salon](t, env)
	if got.Rating != 4 || got.ReviewCount != 1 {
		t.Errorf("rating = %v count = %d", got.Rating, got.ReviewCount)
	}
}

func TestAppointmentFlow(t *testing.T) {
	svc := newService(t)
	salon, cut := seedSalon(t, svc)
	h := newEngine(t, svc)

	code, env := do(t, h, http.MethodPost, "/api/appointments", map[string]any{
		"salonId":   salon.ID,
		"serviceId": cut.ID,
		"userId":    "u1",
		"date":      "2025-06-10",
		"time":      "14:30",
	})
	if code != http.StatusCreated {
		t.Fatalf("book: %d %+v", code, env.Error)
	}
	appt := decode[model.Appointment](t, env)
	if appt.Status != model.AppointmentPending || appt.TotalPrice != 40 {
		t.Errorf("booked = %+v", appt)
	}

	code, env = do(t, h, http.MethodPost, "/api/appointments", map[string]any{
		"salonId": salon.ID, "serviceId": cut.ID, "userId": "u1", "date": "10/06/2025", "time": "14:30",
	})
	if code != http.StatusBadRequest || errorCode(env) != "INVALID_INPUT" {
		t.Errorf("bad date: %d %s", code, errorCode(env))
	}

	code, env = do(t, h, http.MethodPatch, "/api/appointments/"+appt.ID+"/status", map[string]any{"status": "confirmed"})
	if code != http.StatusOK || decode[model.Appointment](t, env).Status != model.AppointmentConfirmed {
		t.Fatalf("confirm: %d %+v", code, env.Error)
	}

	code, env = do(t, h, http.MethodPost, "/api/appointments/"+appt.ID+"/cancel", nil)
	if code != http.StatusOK || decode[model.Appointment](t, env).Status != model.AppointmentCancelled {
		t.Fatalf("cancel: %d %+v", code, env.Error)
	}

	code, env = do(t, h, http.MethodPost, "/api/appointments/"+appt.ID+"/cancel", nil)
	if code != http.StatusConflict || errorCode(env) != "CONFLICT" {
		t.Errorf("second cancel: %d %s", code, errorCode(env))
	}

	code, env = do(t, h, http.MethodGet, "/api/users/u1/appointments", nil)
	if code != http.StatusOK || env.Meta.Total != 1 {
		t.Errorf("user appointments: %d %+v", code, env.Meta)
	}
}

func TestContentRoutes(t *testing.T) {
	svc := newService(t)
	salon, _ := seedSalon(t, svc)
	ctx := context.Background()

	news, _ := svc.News()
	for _, item := range []model.NewsItem{
		{Title: "Summer opening hours", Published: true, PublishedAt: now.Add(-time.Hour)},
		{Title: "Draft", Published: false},
	} {
		if _, err := news.Create(ctx, item); err != nil {
			t.Fatal(err)
		}
	}
	promotions, _ := svc.Promotions()
	for _, p := range []model.Promotion{
		{SalonID: salon.ID, Title: "June deal", DiscountPercent: 20, StartsAt: now.Add(-24 * time.Hour), EndsAt: now.Add(24 * time.Hour), IsActive: true},
		{SalonID: salon.ID, Title: "Expired", DiscountPercent: 10, StartsAt: now.Add(-48 * time.Hour), EndsAt: now.Add(-24 * time.Hour), IsActive: true},
		{SalonID: salon.ID, Title: "Paused", DiscountPercent: 10, StartsAt: now.Add(-48 * time.Hour), IsActive: false},
	} {
		if _, err := promotions.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	h := newEngine(t, svc)
	_, env := do(t, h, http.MethodGet, "/api/news", nil)
	if items := decode[[]model.NewsItem](t, env); len(items) != 1 || items[0].Title != "Summer opening hours" {
		t.Errorf("news = %+v", items)
	}
	_, env = do(t, h, http.MethodGet, "/api/promotions/active", nil)
	if items := decode[[]model.Promotion](t, env); len(items) != 1 || items[0].Title != "June deal" {
		t.Errorf("active promotions = %+v", items)
	}
}

func register(t *testing.T, h http.Handler, email string) model.Session {
	t.Helper()
	code, env := do(t, h, http.MethodPost, "/api/auth/register", map[string]any{
		"email": email, "password": "secret1", "fullName": "Test User",
	})
	if code != http.StatusCreated {
		t.Fatalf("register %s: %d %+v", email, code, env.Error)
	}
	return decode[model.Session](t, env)
}

// adminSession registers a user and has the operator grant it the admin role.
func adminSession(t *testing.T, h http.Handler) model.Session {
	t.Helper()
	session := register(t, h, "admin@example.com")
	code, env := doAs(t, h, operatorToken(t), http.MethodPut, "/api/admin/users/"+session.User.ID+"/role", map[string]any{"role": "admin"})
	if code != http.StatusOK || decode[model.Profile](t, env).Role != model.RoleAdmin {
		t.Fatalf("grant admin: %d %+v", code, env.Error)
	}
	return session
}

func TestAdminFlow(t *testing.T) {
	svc := newService(t)
	h := newEngine(t, svc)
	token := adminSession(t, h).AccessToken

	code, env := do(t, h, http.MethodPost, "/api/admin/salon-requests", map[string]any{
		"ownerId":   "owner-1",
		"salonName": "Nail Bar",
		"address":   "Park Ave 5",
		"city":      "Izmir",
	})
	if code != http.StatusCreated {
		t.Fatalf("submit: %d %+v", code, env.Error)
	}
	req := decode[model.SalonRequest](t, env)
	if req.Status != model.RequestPending {
		t.Errorf("submitted = %+v", req)
	}

	code, env = do(t, h, http.MethodPost, "/api/admin/salon-requests", map[string]any{"ownerId": "owner-1"})
	if code != http.StatusBadRequest {
		t.Errorf("incomplete request: %d %s", code, errorCode(env))
	}

	if code, env = doAs(t, h, token, http.MethodGet, "/api/admin/salon-requests?status=pending", nil); code != http.StatusOK || env.Meta.Total != 1 {
		t.Errorf("pending: %d %+v", code, env.Meta)
	}
	if code, env = doAs(t, h, token, http.MethodGet, "/api/admin/salon-requests?status=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("bogus status: %d %s", code, errorCode(env))
	}

	code, env = doAs(t, h, token, http.MethodPost, "/api/admin/salon-requests/"+req.ID+"/approve", nil)
	if code != http.StatusCreated {
		t.Fatalf("approve: %d %+v", code, env.Error)
	}
	if salon := decode[model.Salon](t, env); salon.Name != "Nail Bar" || salon.City != "Izmir" {
		t.Errorf("salon = %+v", salon)
	}

	code, env = doAs(t, h, token, http.MethodPost, "/api/admin/salon-requests/"+req.ID+"/reject", map[string]any{"reason": "late"})
	if code != http.StatusConflict || errorCode(env) != "CONFLICT" {
		t.Errorf("reject approved: %d %s", code, errorCode(env))
	}

	code, env = doAs(t, h, token, http.MethodGet, "/api/admin/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("stats: %d", code)
	}
	st := decode[model.Stats](t, env)
	if st.Salons != 1 || st.ActiveSalons != 1 || st.PendingRequests != 0 || st.Users != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestProviderAndAdminRoutesRequireAdmin(t *testing.T) {
	h := newEngine(t, newService(t))
	customer := register(t, h, "ayse@example.com").AccessToken
	forged, err := middleware.IssueOperatorToken([]byte("another-secret-0123456789abcdef!"), "ops", string(model.RoleAdmin), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/provider/status"},
		{http.MethodPost, "/api/provider/switch"},
		{http.MethodPost, "/api/provider/migrate"},
		{http.MethodGet, "/api/admin/salon-requests"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodPut, "/api/admin/users/u1/role"},
	}
	callers := []struct {
		name  string
		token string
		code  int
		want  string
	}{
		{"anonymous", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown token", "not-a-token", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"foreign operator", forged, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"customer", customer, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, caller := range callers {
		for _, r := range routes {
			t.Run(caller.name+" "+r.method+" "+r.path, func(t *testing.T) {
				code, env := doAs(t, h, caller.token, r.method, r.path, nil)
				if code != caller.code || errorCode(env) != caller.want {
					t.Errorf("got %d %s, want %d %s", code, errorCode(env), caller.code, caller.want)
				}
			})
		}
	}

	admin := adminSession(t, h).AccessToken
	if code, env := doAs(t, h, admin, http.MethodGet, "/api/provider/status", nil); code != http.StatusOK {
		t.Errorf("admin status: %d %+v", code, env.Error)
	}
}

func TestAuthRoutes(t *testing.T) {
	h := newEngine(t, newService(t))

	code, env := do(t, h, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "ayse@example.com", "password": "secret1", "fullName": "Ayse",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %+v", code, env.Error)
	}
	session := decode[model.Session](t, env)
	if session.AccessToken == "" || session.User == nil || session.User.Email != "ayse@example.com" {
		t.Errorf("session = %+v", session)
	}

	if code, env = do(t, h, http.MethodGet, "/api/auth/me", nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous me after another user's register: %d %s", code, errorCode(env))
	}
	code, env = doAs(t, h, session.AccessToken, http.MethodGet, "/api/auth/me", nil)
	if code != http.StatusOK || decode[model.Profile](t, env).Email != "ayse@example.com" {
		t.Errorf("me: %d %+v", code, env.Error)
	}

	other := register(t, h, "zeynep@example.com")
	code, env = doAs(t, h, other.AccessToken, http.MethodGet, "/api/auth/me", nil)
	if code != http.StatusOK || decode[model.Profile](t, env).Email != "zeynep@example.com" {
		t.Errorf("second user me: %d %s", code, env.Data)
	}
	code, env = doAs(t, h, session.AccessToken, http.MethodGet, "/api/auth/me", nil)
	if code != http.StatusOK || decode[model.Profile](t, env).Email != "ayse@example.com" {
		t.Errorf("first user me after second login: %d %s", code, env.Data)
	}

	if code, _ = doAs(t, h, session.AccessToken, http.MethodPost, "/api/auth/logout", nil); code != http.StatusNoContent {
		t.Errorf("logout: %d", code)
	}
	if code, env = doAs(t, h, "garbage", http.MethodGet, "/api/auth/me", nil); code != http.StatusUnauthorized {
		t.Errorf("me with bad token: %d %s", code, errorCode(env))
	}

	code, env = do(t, h, http.MethodPost, "/api/auth/login", map[string]any{"email": "ayse@example.com", "password": "wrong-pass"})
	if code != http.StatusUnauthorized || errorCode(env) != "UNAUTHORIZED" {
		t.Errorf("bad login: %d %s", code, errorCode(env))
	}
	code, env = do(t, h, http.MethodPost, "/api/auth/login", map[string]any{"email": "ayse@example.com", "password": "secret1"})
	if code != http.StatusOK || decode[model.Session](t, env).AccessToken == "" {
		t.Errorf("login: %d %+v", code, env.Error)
	}
	if code, env = do(t, h, http.MethodGet, "/api/auth/me", nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous me after login: %d %s", code, errorCode(env))
	}

	code, env = do(t, h, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "root@example.com", "password": "secret1", "fullName": "Root", "role": "admin",
	})
	if code != http.StatusForbidden || errorCode(env) != "FORBIDDEN" {
		t.Errorf("self-registered admin: %d %s", code, errorCode(env))
	}
}

func TestUninitializedService(t *testing.T) {
	svc := cloud.NewService(cloud.Config{}, providers.Source(nil, nil), nil)
	h := newEngine(t, svc)
	ops := operatorToken(t)

	for _, path := range []string{"/api/salons", "/api/news", "/api/admin/stats"} {
		code, env := doAs(t, h, ops, http.MethodGet, path, nil)
		if code != http.StatusServiceUnavailable || errorCode(env) != "NO_PROVIDER_INITIALIZED" {
			t.Errorf("%s: %d %s", path, code, errorCode(env))
		}
	}
	code, env := doAs(t, h, ops, http.MethodGet, "/api/provider/status", nil)
	if code != http.StatusOK || decode[cloud.Status](t, env).State != cloud.StateUninitialized {
		t.Errorf("status: %d %s", code, env.Data)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newEngine(t, newService(t))
	code, env := do(t, h, http.MethodGet, "/api/nothing-here", nil)
	if code != http.StatusNotFound || errorCode(env) != "NOT_FOUND" {
		t.Errorf("got %d %s", code, errorCode(env))
	}
}

func TestChangeStream(t *testing.T) {
	svc := newService(t)
	ts := httptest.NewServer(newEngine(t, svc))
	defer ts.Close()

	if code, env := do(t, newEngine(t, svc), http.MethodGet, "/api/changes/nope", nil); code != http.StatusBadRequest {
		t.Errorf("unknown table: %d %s", code, errorCode(env))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(ts.URL + "/api/changes/salons?city=Istanbul")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		t.Helper()
		var typ, data string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "" && typ != "":
				return typ, data
			case strings.HasPrefix(line, "event: "):
				typ = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	if typ, _ := readEvent(); typ != "connected" {
		t.Fatalf("first event = %q", typ)
	}

	salons, _ := svc.Salons()
	ctx := context.Background()
	if _, err := salons.Create(ctx, model.Salon{Name: "Elsewhere", Address: "x", City: "Ankara", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := salons.Create(ctx, model.Salon{Name: "Glow Studio", Address: "Main St 1", City: "Istanbul", IsActive: true}); err != nil {
		t.Fatal(err)
	}

	typ, data := readEvent()
	if typ != string(cloud.ChangeInsert) {
		t.Fatalf("event = %q", typ)
	}
	var change cloud.Change
	if err := json.Unmarshal([]byte(data), &change); err != nil {
		t.Fatal(err)
	}
	if change.Table != model.TableSalons || change.Record["name"] != "Glow Studio" {
		t.Errorf("change = %+v", change)
	}
}
