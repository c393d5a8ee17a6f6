package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	adapthttp "weighttracker/internal/adapter/http"
	"weighttracker/internal/adapter/memory"
	"weighttracker/internal/app"
	"weighttracker/internal/auth"
	"weighttracker/internal/domain"
	"weighttracker/internal/metrics"
)

const testSecret = "test-secret-key-that-is-long-enough-0123456789"

// ---------------------------------------------------------------------------
// Mock repositories (function-fields pattern)
// ---------------------------------------------------------------------------

// failingMeasurementRepo reports the store as unreachable on every call.
type failingMeasurementRepo struct {
	err error
}

func (m *failingMeasurementRepo) InsertMeasurement(context.Context, int64, domain.Day, float64, string) (*domain.Measurement, error) {
	return nil, m.err
}

func (m *failingMeasurementRepo) InsertMeasurementIfAbsent(context.Context, int64, domain.Day, float64, string) (bool, error) {
	return false, m.err
}

func (m *failingMeasurementRepo) ListMeasurements(context.Context, int64) ([]domain.Measurement, error) {
	return nil, m.err
}

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

type testEnv struct {
	*httptest.Server
	db      *memory.DB
	metrics *metrics.Metrics
}

type envOption func(*adapthttp.Services, *adapthttp.Options)

func withMeasurementRepo(repo domain.MeasurementRepository) envOption {
	return func(s *adapthttp.Services, _ *adapthttp.Options) {
		s.Measurements = app.NewMeasurementService(repo, nil)
		s.Trends = app.NewTrendService(repo)
	}
}

func withCORSOrigins(origins ...string) envOption {
	return func(_ *adapthttp.Services, o *adapthttp.Options) { o.CORSOrigins = origins }
}

func withSSO(sso *adapthttp.SSO) envOption {
	return func(_ *adapthttp.Services, o *adapthttp.Options) { o.SSO = sso }
}

func newTestServer(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := memory.New()
	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	svc := adapthttp.Services{
		Auth:         app.NewAuthService(db, auth.NewPasswordHasher(bcrypt.MinCost), tokens),
		Measurements: app.NewMeasurementService(db, m),
		Trends:       app.NewTrendService(db),
		Goals:        app.NewGoalService(db, db),
	}
	o := adapthttp.Options{
		CORSOrigins:    []string{"http://localhost:3000"},
		RequestTimeout: 5 * time.Second,
		Metrics:        m,
		Ping:           db.Ping,
	}
	for _, opt := range opts {
		opt(&svc, &o)
	}

	ts := httptest.NewServer(adapthttp.New(svc, o).Handler())
	t.Cleanup(ts.Close)
	return &testEnv{Server: ts, db: db, metrics: m}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

// register creates a user and returns its bearer token.
func (e *testEnv) register(t *testing.T, username string, height float64) string {
	t.Helper()
	payload := map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse",
	}
	if height > 0 {
		payload["height"] = height
	}
	resp := e.do(t, http.MethodPost, "/register", "", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %v", resp.StatusCode, decodeBody(t, resp))
	}
	body := decodeBody(t, resp)
	tok, _ := body["access_token"].(string)
	if tok == "" || body["token_type"] != "bearer" {
		t.Fatalf("register: unexpected body %v", body)
	}
	return tok
}

func expectStatus(t *testing.T, resp *http.Response, want int) map[string]any {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d; body: %s", want, resp.StatusCode, b)
	}
	if resp.Header.Get("Content-Type") == "" || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return decodeBody(t, resp)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	body := expectStatus(t, ts.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestRegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", 180)

	// JSON login at the root.
	body := expectStatus(t, ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"username": "alice", "password": "correct horse",
	}), http.StatusOK)
	token, _ := body["access_token"].(string)
	if token == "" || body["token_type"] != "bearer" {
		t.Fatalf("unexpected login body %v", body)
	}

	// Form login under /auth, as the web client sends it.
	form := url.Values{"username": {"alice"}, "password": {"correct horse"}}
	resp, err := http.PostForm(ts.URL+"/auth/login", form)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	expectStatus(t, resp, http.StatusOK)

	me := expectStatus(t, ts.do(t, http.MethodGet, "/auth/me", token, nil), http.StatusOK)
	if me["username"] != "alice" || me["height"] != 180.0 {
		t.Errorf("unexpected /me body %v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Error("password hash must not be serialised")
	}
}

func TestRegister_DuplicateAndValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", 0)

	body := expectStatus(t, ts.do(t, http.MethodPost, "/register", "", map[string]any{
		"username": "alice", "email": "other@example.com", "password": "correct horse",
	}), http.StatusConflict)
	if body["error"] != "already registered" {
		t.Errorf("unexpected body %v", body)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/register", "", map[string]any{
		"username": "bob", "email": "bob@example.com", "password": "short",
	}), http.StatusBadRequest)

	expectStatus(t, ts.do(t, http.MethodPost, "/register", "", map[string]any{
		"username": "bob", "email": "bob@example.com", "password": "correct horse", "admin": true,
	}), http.StatusBadRequest)
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", 0)

	wrong := ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "nope nope"})
	unknown := ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "ghost", "password": "nope nope"})

	b1 := expectStatus(t, wrong, http.StatusUnauthorized)
	b2 := expectStatus(t, unknown, http.StatusUnauthorized)
	if b1["error"] != "unauthorized" || b2["error"] != "unauthorized" {
		t.Errorf("expected uniform bodies, got %v and %v", b1, b2)
	}
	if wrong.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("missing WWW-Authenticate header")
	}
}

func TestProtectedRoutes_RejectBadTokens(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", 0)

	tm, _ := auth.NewTokenManager(testSecret, time.Hour)
	expired, _ := tm.IssueWithExpiry("alice", time.Now().Add(-time.Minute))
	ghost, _ := tm.Issue("ghost")
	otherKey, _ := auth.NewTokenManager(strings.Repeat("x", 40), time.Hour)
	forged, _ := otherKey.Issue("alice")

	tokens := map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"expired":      expired.AccessToken,
		"unknown user": ghost.AccessToken,
		"wrong key":    forged.AccessToken,
	}
	for name, tok := range tokens {
		t.Run(name, func(t *testing.T) {
			body := expectStatus(t, ts.do(t, http.MethodGet, "/measurements", tok, nil), http.StatusUnauthorized)
			if body["error"] != "unauthorized" {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice", 0)
	ts.register(t, "bob", 0)

	body := expectStatus(t, ts.do(t, http.MethodPut, "/me", token, map[string]any{
		"email": "alice@new.example.com", "height": 165.0, "age": 31,
	}), http.StatusOK)
	if body["email"] != "alice@new.example.com" || body["age"] != 31.0 {
		t.Errorf("unexpected body %v", body)
	}

	body = expectStatus(t, ts.do(t, http.MethodPut, "/me", token, map[string]any{
		"email": "bob@example.com",
	}), http.StatusConflict)
	if body["error"] != "email already in use" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestMeasurements(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice", 0)

	tests := []struct {
		name       string
		payload    map[string]any
		wantStatus int
	}{
		{"valid", map[string]any{"measurement_date": "2024-01-02", "weight": 100.0, "notes": "am"}, http.StatusCreated},
		{"same date again", map[string]any{"measurement_date": "2024-01-02", "weight": 99.5}, http.StatusCreated},
		{"bad date", map[string]any{"measurement_date": "02/01/2024", "weight": 80.0}, http.StatusBadRequest},
		{"zero weight", map[string]any{"measurement_date": "2024-01-03", "weight": 0}, http.StatusBadRequest},
		{"non-numeric weight", map[string]any{"measurement_date": "2024-01-03", "weight": "abc"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := expectStatus(t, ts.do(t, http.MethodPost, "/measurements", token, tc.payload), tc.wantStatus)
			if tc.wantStatus == http.StatusCreated {
				if body["message"] != "Measurement added successfully" {
					t.Errorf("unexpected body %v", body)
				}
				if _, ok := body["measurement"].(map[string]any); !ok {
					t.Errorf("missing measurement in %v", body)
				}
			}
		})
	}

	body := expectStatus(t, ts.do(t, http.MethodGet, "/measurements?unit=lb", token, nil), http.StatusOK)
	arr, ok := body["measurements"].([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected 2 measurements, got %v", body)
	}
	first := arr[0].(map[string]any)
	if first["weight"] != 220.46 || first["measurement_date"] != "2024-01-02" {
		t.Errorf("unexpected first measurement %v", first)
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/measurements?unit=stone", token, nil), http.StatusBadRequest)
}

func TestMeasurements_IsolatedPerUser(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice", 0)
	bob := ts.register(t, "bob", 0)

	expectStatus(t, ts.do(t, http.MethodPost, "/measurements", alice, map[string]any{
		"measurement_date": "2024-01-02", "weight": 70.0,
	}), http.StatusCreated)

	body := expectStatus(t, ts.do(t, http.MethodGet, "/measurements", bob, nil), http.StatusOK)
	if arr, _ := body["measurements"].([]any); len(arr) != 0 {
		t.Errorf("bob should see no measurements, got %v", arr)
	}
}

func TestTrends(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice", 200)

	body := expectStatus(t, ts.do(t, http.MethodGet, "/trends", token, nil), http.StatusOK)
	if body["total_measurements"] != 0.0 || body["bmi"] != nil || body["date_range"] != nil {
		t.Errorf("unexpected empty summary %v", body)
	}

	for _, m := range []struct {
		date   string
		weight float64
	}{{"2024-01-01", 100}, {"2024-01-02", 98}, {"2024-01-03", 96}} {
		expectStatus(t, ts.do(t, http.MethodPost, "/measurements", token, map[string]any{
			"measurement_date": m.date, "weight": m.weight,
		}), http.StatusCreated)
	}

	body = expectStatus(t, ts.do(t, http.MethodGet, "/trends", token, nil), http.StatusOK)
	want := map[string]any{
		"average_weight":     98.0,
		"bmi":                24.0,
		"trend_slope":        -2.0,
		"total_measurements": 3.0,
		"date_range":         "2024-01-01 to 2024-01-03",
		"current_streak":     3.0,
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %v", k, body[k], v)
		}
	}
}

func TestChartsDaily(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice", 0)

	body := expectStatus(t, ts.do(t, http.MethodGet, "/charts/daily?days=7", token, nil), http.StatusOK)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 7 {
		t.Fatalf("expected 7 items, got %v", body["items"])
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/charts/daily?unit=stone", token, nil), http.StatusBadRequest)
}

func TestGoals(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice", 0)

	// No history and no explicit start weight.
	expectStatus(t, ts.do(t, http.MethodPost, "/goals", token, map[string]any{
		"target_weight": 80.0, "target_date": "2024-06-01",
	}), http.StatusBadRequest)

	expectStatus(t, ts.do(t, http.MethodPost, "/measurements", token, map[string]any{
		"measurement_date": "2024-01-01", "weight": 92.0,
	}), http.StatusCreated)

	g := expectStatus(t, ts.do(t, http.MethodPost, "/goals", token, map[string]any{
		"target_weight": 80.0, "target_date": "2024-06-01",
	}), http.StatusCreated)
	if g["start_weight"] != 92.0 || g["target_date"] != "2024-06-01" {
		t.Errorf("unexpected goal %v", g)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/goals", token, map[string]any{
		"target_weight": 85.0, "target_date": "2024-09-01", "start_weight": 95.0,
	}), http.StatusCreated)

	body := expectStatus(t, ts.do(t, http.MethodGet, "/goals", token, nil), http.StatusOK)
	goals, _ := body["goals"].([]any)
	if len(goals) != 2 || goals[0].(map[string]any)["target_date"] != "2024-09-01" {
		t.Errorf("expected latest target first, got %v", goals)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/goals", token, map[string]any{
		"target_weight": 85.0, "target_date": "not-a-date",
	}), http.StatusBadRequest)
}

func TestImportExport(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice", 0)

	// Multipart upload with one good row and one bad weight.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "weights.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, "measurement_date,weight,notes\n2024-01-01,80,first\n2024-01-02,abc,\n")
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	rep := expectStatus(t, resp, http.StatusOK)
	if rep["status"] != "completed" || rep["imported"] != 1.0 || rep["skipped"] != 1.0 {
		t.Errorf("unexpected report %v", rep)
	}

	// Raw CSV body; 2024-01-01 already exists.
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/import", strings.NewReader("2024-01-01,81\n2024-01-05,79.5\n"))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close() //nolint:errcheck
	rep = expectStatus(t, resp2, http.StatusOK)
	if rep["imported"] != 1.0 || rep["duplicates"] != 1.0 {
		t.Errorf("unexpected report %v", rep)
	}

	body := expectStatus(t, ts.do(t, http.MethodGet, "/export", token, nil), http.StatusOK)
	want := "measurement_date,weight,notes\n2024-01-01,80,first\n2024-01-05,79.5,\n"
	if body["csv"] != want {
		t.Errorf("csv = %q, want %q", body["csv"], want)
	}
}

func TestStoreUnavailable(t *testing.T) {
	ts := newTestServer(t, withMeasurementRepo(&failingMeasurementRepo{err: domain.ErrStoreUnavailable}))
	token := ts.register(t, "alice", 0)

	for _, path := range []string{"/measurements", "/trends", "/export"} {
		body := expectStatus(t, ts.do(t, http.MethodGet, path, token, nil), http.StatusServiceUnavailable)
		if body["error"] != "service temporarily unavailable" {
			t.Errorf("%s: unexpected body %v", path, body)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/measurements", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close() //nolint:errcheck
	if resp2.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for foreign origin")
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	ts := newTestServer(t, withCORSOrigins("*", "http://localhost:3000"))

	preflight := func(origin string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/measurements", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := preflight("http://anything.example")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("wildcard origin must not get credentials, got %q", got)
	}

	resp = preflight("http://localhost:3000")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("listed origin should get credentials, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	expectStatus(t, ts.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)

	// The counter is bumped after the response is flushed, so poll briefly.
	want := `weighttracker_http_requests_total{code="200",method="GET",route="/healthz"}`
	var b []byte
	for i := 0; i < 50; i++ {
		resp := ts.do(t, http.MethodGet, "/metrics", "", nil)
		b, _ = io.ReadAll(resp.Body)
		if strings.Contains(string(b), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("metrics missing healthz counter:\n%s", b)
}

func TestSSO(t *testing.T) {
	ts := newTestServer(t)
	body := expectStatus(t, ts.do(t, http.MethodGet, "/auth/sso/config", "", nil), http.StatusOK)
	if body["sso_enabled"] != false {
		t.Errorf("expected sso disabled, got %v", body)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/auth/sso/login", "", nil), http.StatusNotFound)

	sso := &adapthttp.SSO{OAuth2: oauth2.Config{
		ClientID:    "wt",
		RedirectURL: "http://localhost:8000/auth/sso/callback",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://id.example/authorize", TokenURL: "https://id.example/token"},
	}}
	ts = newTestServer(t, withSSO(sso))
	body = expectStatus(t, ts.do(t, http.MethodGet, "/auth/sso/config", "", nil), http.StatusOK)
	if body["sso_enabled"] != true {
		t.Errorf("expected sso enabled, got %v", body)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(ts.URL + "/auth/sso/login")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusFound || !strings.HasPrefix(resp.Header.Get("Location"), "https://id.example/authorize?") {
		t.Fatalf("expected redirect to provider, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	// Callback without the state cookie.
	expectStatus(t, ts.do(t, http.MethodGet, "/auth/sso/callback?state=x&code=y", "", nil), http.StatusBadRequest)
}
