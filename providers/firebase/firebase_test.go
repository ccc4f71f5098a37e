package firebase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/model"
)

const docsPrefix = "/v1/projects/demo/databases/(default)/documents"

type request struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
	raw    string
}

// fakeFirebase serves Firestore, Identity Toolkit and Storage from one
// in-memory collection set.
type fakeFirebase struct {
	mu       sync.Mutex
	docs     map[string]map[string]map[string]any
	requests []request
	seq      int
}

func newFakeFirebase(t *testing.T) (*fakeFirebase, *httptest.Server) {
	f := &fakeFirebase{docs: map[string]map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeFirebase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request{r.Method, r.URL.EscapedPath(), r.URL.RawQuery, r.Header.Get("Authorization"), body, string(raw)})

	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, "/identity/accounts:"):
		f.identity(w, strings.TrimPrefix(p, "/identity/accounts:"), body)
	case strings.HasPrefix(p, "/storage/"):
		writeJSON(w, http.StatusOK, map[string]string{"name": r.URL.Query().Get("name")})
	case p == docsPrefix+":runQuery":
		f.runQuery(w, body)
	case strings.HasPrefix(p, docsPrefix+"/"):
		f.document(w, r, strings.Split(strings.TrimPrefix(p, docsPrefix+"/"), "/"), body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "not found"}})
	}
}

func (f *fakeFirebase) identity(w http.ResponseWriter, method string, body map[string]any) {
	switch method {
	case "signInWithPassword":
		if body["password"] != "secret1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "INVALID_LOGIN_CREDENTIALS"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"idToken": "id-token", "expiresIn": "3600", "localId": "u1", "email": "ayse@example.com"})
	case "signUp":
		if body["email"] == "taken@example.com" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "EMAIL_EXISTS"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"idToken": "new-token", "expiresIn": "3600", "localId": "u2", "email": body["email"].(string)})
	case "lookup":
		writeJSON(w, http.StatusOK, map[string]any{"users": []map[string]string{{"localId": "u1", "email": "ayse@example.com"}}})
	}
}

func (f *fakeFirebase) document(w http.ResponseWriter, r *http.Request, parts []string, body map[string]any) {
	coll := parts[0]
	if f.docs[coll] == nil {
		f.docs[coll] = map[string]map[string]any{}
	}
	if len(parts) == 1 {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		id := r.URL.Query().Get("documentId")
		if id == "" {
			f.seq++
			id = "auto" + string(rune('0'+f.seq))
		}
		fields, _ := body["fields"].(map[string]any)
		f.docs[coll][id] = fields
		writeJSON(w, http.StatusOK, f.render(coll, id))
		return
	}
	id := parts[1]
	fields, ok := f.docs[coll][id]
	switch r.Method {
	case http.MethodGet:
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "NOT_FOUND"}})
			return
		}
		writeJSON(w, http.StatusOK, f.render(coll, id))
	case http.MethodPatch:
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "NOT_FOUND"}})
			return
		}
		update, _ := body["fields"].(map[string]any)
		for _, path := range r.URL.Query()["updateMask.fieldPaths"] {
			fields[path] = update[path]
		}
		writeJSON(w, http.StatusOK, f.render(coll, id))
	case http.MethodDelete:
		delete(f.docs[coll], id)
		writeJSON(w, http.StatusOK, map[string]any{})
	}
}

func (f *fakeFirebase) render(coll, id string) map[string]any {
	return map[string]any{"name": "projects/demo/databases/(default)/documents/" + coll + "/" + id, "fields": f.docs[coll][id]}
}

// runQuery supports a single collection with EQUAL field filters.
func (f *fakeFirebase) runQuery(w http.ResponseWriter, body map[string]any) {
	q := body["structuredQuery"].(map[string]any)
	coll := q["from"].([]any)[0].(map[string]any)["collectionId"].(string)
	var filters []map[string]any
	if where, ok := q["where"].(map[string]any); ok {
		if ff, ok := where["fieldFilter"].(map[string]any); ok {
			filters = append(filters, ff)
		} else {
			for _, c := range where["compositeFilter"].(map[string]any)["filters"].([]any) {
				filters = append(filters, c.(map[string]any)["fieldFilter"].(map[string]any))
			}
		}
	}
	var out []map[string]any
	for id, fields := range f.docs[coll] {
		match := true
		for _, ff := range filters {
			path := ff["field"].(map[string]any)["fieldPath"].(string)
			want, _ := json.Marshal(ff["value"])
			got, _ := json.Marshal(fields[path])
			if string(want) != string(got) {
				match = false
			}
		}
		if match {
			out = append(out, map[string]any{"document": f.render(coll, id), "readTime": "2026-05-01T10:00:00Z"})
		}
	}
	out = append(out, map[string]any{"readTime": "2026-05-01T10:00:00Z"})
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeFirebase) last(method, prefix string) request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].method == method && strings.HasPrefix(f.requests[i].path, prefix) {
			return f.requests[i]
		}
	}
	return request{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func connect(t *testing.T, srv *httptest.Server, extra ...string) *Provider {
	t.Helper()
	creds := map[string]string{
		"project_id":    "demo",
		"api_key":       "web-key",
		"firestore_url": srv.URL + "/v1",
		"identity_url":  srv.URL + "/identity",
		"storage_url":   srv.URL + "/storage",
	}
	for i := 0; i+1 < len(extra); i += 2 {
		creds[extra[i]] = extra[i+1]
	}
	p := New(nil, nil)
	if err := p.Initialize(context.Background(), creds); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestInitializeValidation(t *testing.T) {
	tests := []struct {
		name  string
		creds map[string]string
		code  errors.ErrorCode
	}{
		{"missing project", map[string]string{"api_key": "k"}, errors.ErrCodeMissingField},
		{"missing key", map[string]string{"project_id": "p"}, errors.ErrCodeMissingField},
		{"bad service account", map[string]string{"project_id": "p", "api_key": "k", "service_account_json": "{"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New(nil, nil).Initialize(context.Background(), tt.creds); !errors.HasCode(err, tt.code) {
				t.Errorf("Initialize() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestDocumentLifecycle(t *testing.T) {
	f, srv := newFakeFirebase(t)
	p := connect(t, srv)
	db := p.Database()
	ctx := context.Background()

	if check := f.last(http.MethodGet, docsPrefix+"/salons"); !strings.Contains(check.query, "pageSize=1") || !strings.Contains(check.query, "key=web-key") {
		t.Errorf("check query = %q", check.query)
	}

	created, err := db.Create(ctx, model.TableSalons, model.Record{"id": "s1", "name": "Glow", "city": "Izmir", "isActive": true, "reviewCount": 3})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID() != "s1" || created["reviewCount"] != int64(3) {
		t.Errorf("Create() = %v", created)
	}
	if req := f.last(http.MethodPost, docsPrefix+"/salons"); !strings.Contains(req.query, "documentId=s1") {
		t.Errorf("create query = %q", req.query)
	}
	if _, err := db.Create(ctx, model.TableSalons, model.Record{"name": "Shine", "city": "Ankara", "isActive": true}); err != nil {
		t.Fatal(err)
	}

	updated, err := db.Update(ctx, model.TableSalons, "s1", model.Record{"phone": "555"})
	if err != nil {
		t.Fatal(err)
	}
	if updated["phone"] != "555" || updated["name"] != "Glow" {
		t.Errorf("Update() = %v", updated)
	}
	if req := f.last(http.MethodPatch, docsPrefix+"/salons/s1"); !strings.Contains(req.query, "updateMask.fieldPaths=phone") {
		t.Errorf("update query = %q", req.query)
	}
	if _, err := db.Update(ctx, model.TableSalons, "nope", model.Record{"phone": "1"}); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Update(missing) error = %v", err)
	}

	rows, err := db.List(ctx, model.TableSalons, cloud.Filters{"city": "Izmir", "isActive": true}, &cloud.ListOptions{OrderBy: "rating", Descending: true, Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID() != "s1" {
		t.Errorf("List() = %v", rows)
	}
	q := f.last(http.MethodPost, docsPrefix+":runQuery").body["structuredQuery"].(map[string]any)
	if q["orderBy"].([]any)[0].(map[string]any)["direction"] != "DESCENDING" || q["limit"] != float64(5) {
		t.Errorf("structuredQuery = %v", q)
	}

	found, err := db.Search(ctx, model.TableSalons, "shi", []string{"name"})
	if err != nil || len(found) != 1 || found[0]["name"] != "Shine" {
		t.Errorf("Search() = %v, %v", found, err)
	}

	if err := db.Delete(ctx, model.TableSalons, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Read(ctx, model.TableSalons, "s1"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Read(deleted) error = %v", err)
	}
	if err := db.Delete(ctx, model.TableSalons, "s1"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Delete(deleted) error = %v", err)
	}
}

func TestDomainOverFirestore(t *testing.T) {
	_, srv := newFakeFirebase(t)
	p := connect(t, srv)
	ctx := context.Background()

	salon, err := p.Salons().Create(ctx, model.Salon{Name: "Glow", Address: "Main 1", City: "Izmir", IsActive: true,
		OpeningHours: map[string]string{"mon": "9-18"}, Categories: []string{"hair"}})
	if err != nil {
		t.Fatal(err)
	}
	got := p.Salons().ByID(ctx, salon.ID)
	if got == nil || got.OpeningHours["mon"] != "9-18" || len(got.Categories) != 1 || got.CreatedAt.IsZero() {
		t.Errorf("ByID() = %+v", got)
	}
	if all := p.Salons().ByCity(ctx, "Izmir"); len(all) != 1 {
		t.Errorf("ByCity() = %v", all)
	}

	snap, err := p.ExportData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap[model.TableSalons]) != 1 {
		t.Errorf("export = %v", snap)
	}
}

func TestAuth(t *testing.T) {
	f, srv := newFakeFirebase(t)
	p := connect(t, srv)
	ctx := context.Background()

	if _, err := p.Auth().Login(ctx, "ayse@example.com", "bad"); !errors.HasCode(err, errors.ErrCodeUnauthorized) {
		t.Errorf("Login(bad) error = %v", err)
	}
	if _, err := p.Auth().Register(ctx, model.Registration{Email: "taken@example.com", Password: "secret1"}); !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("Register(taken) error = %v", err)
	}

	session, err := p.Auth().Register(ctx, model.Registration{Email: "new@example.com", Password: "secret1", FullName: "Yeni"})
	if err != nil {
		t.Fatal(err)
	}
	if session.AccessToken != "new-token" || session.User.ID != "u2" || session.User.Role != model.RoleCustomer {
		t.Errorf("session = %+v", session)
	}
	if req := f.last(http.MethodPost, docsPrefix+"/profiles"); req.auth != "Bearer new-token" || !strings.Contains(req.query, "documentId=u2") {
		t.Errorf("profile create = %+v", req)
	}

	if _, err := p.Auth().Login(ctx, "ayse@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	if u := p.Auth().CurrentUser(ctx); u == nil || u.ID != "u1" {
		t.Errorf("CurrentUser() = %+v", u)
	}
	_ = p.Auth().Logout(ctx)
	if p.Auth().CurrentUser(ctx) != nil {
		t.Error("CurrentUser() after logout != nil")
	}
}

func TestStorage(t *testing.T) {
	f, srv := newFakeFirebase(t)
	p := connect(t, srv, "storage_bucket", "demo-media")
	ctx := context.Background()

	url, err := p.Storage().Upload(ctx, "salons", "s1/cover.jpg", strings.NewReader("jpg"), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if want := srv.URL + "/storage/b/demo-media/o/salons%2Fs1%2Fcover.jpg?alt=media"; url != want {
		t.Errorf("Upload() = %s, want %s", url, want)
	}
	up := f.last(http.MethodPost, "/storage/b/demo-media/o")
	if !strings.Contains(up.query, "name=salons%2Fs1%2Fcover.jpg") || up.raw != "jpg" {
		t.Errorf("upload = %+v", up)
	}
	if err := p.Storage().CreateBucket(ctx, "salons", true); err != nil {
		t.Errorf("CreateBucket() error = %v", err)
	}
	if err := p.Storage().Delete(ctx, "salons", "s1/cover.jpg"); err != nil {
		t.Fatal(err)
	}
	if del := f.last(http.MethodDelete, "/storage/"); del.path != "/storage/b/demo-media/o/salons%2Fs1%2Fcover.jpg" {
		t.Errorf("delete path = %s", del.path)
	}
}
