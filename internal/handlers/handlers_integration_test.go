package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"vitamart/internal/handlers"
	"vitamart/internal/repositories"
	"vitamart/internal/services"
	"vitamart/internal/upstream"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeBackend stands in for the recommendation backend: a tiny HTTP server
// speaking the status envelope, with counters so tests can assert which
// calls were (not) made.
type fakeBackend struct {
	mu           sync.Mutex
	users        map[string]string // email -> password
	names        map[string]string
	profiles     map[string]map[string]interface{}
	searchCalls  int
	trackCalls   int
	failSimilar  bool
	failTracking bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:    make(map[string]string),
		names:    make(map[string]string),
		profiles: make(map[string]map[string]interface{}),
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, body map[string]interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
	decode := func(r *http.Request) map[string]interface{} {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		return body
	}

	mux.HandleFunc("/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		email, _ := body["email"].(string)
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, exists := f.users[email]; exists {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "error", "message": "email already registered",
			})
			return
		}
		f.users[email], _ = body["password"].(string)
		f.names[email], _ = body["name"].(string)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"user":   map[string]interface{}{"email": email, "name": f.names[email], "profile": nil},
		})
	})

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.users[email] != password || password == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"status": "error", "message": "Sai tài khoản",
			})
			return
		}
		user := map[string]interface{}{"email": email, "name": f.names[email], "profile": nil}
		if profile, ok := f.profiles[email]; ok {
			user["profile"] = profile
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "user": user})
	})

	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		email, _ := body["email"].(string)
		profile := map[string]interface{}{
			"age":             body["age"],
			"weight":          body["weight"],
			"health_concerns": body["health_concerns"],
			"diseases":        body["diseases"],
		}
		f.mu.Lock()
		f.profiles[email] = profile
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "profile": profile})
	})

	mux.HandleFunc("/api/products/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searchCalls++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"count":  2,
			"products": []map[string]interface{}{
				{"id": 1, "name": "Omega 3", "category": "vitamin", "match_score": 90, "age_range": "18-45"},
				{"id": 2, "name": "Glucosamine", "category": "joint", "match_score": 70, "age_range": "41+"},
			},
		})
	})

	mux.HandleFunc("/api/products/landing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":                  "success",
			"categories":              []map[string]interface{}{{"category": "vitamin", "count": 12}},
			"popular_products":        []map[string]interface{}{{"id": 1, "name": "Omega 3"}},
			"general_recommendations": []map[string]interface{}{{"id": 2, "name": "Vitamin C"}},
			"total_products":          40,
		})
	})

	mux.HandleFunc("/api/products/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success", "count": 2, "categories": []string{"vitamin", "joint"},
		})
	})

	mux.HandleFunc("/api/products/personalized", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success", "count": 1,
			"recommendations": []map[string]interface{}{{"id": 5, "name": "Melatonin", "match_score": 95}},
		})
	})

	mux.HandleFunc("/api/products/view", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.trackCalls++
		failTracking := f.failTracking
		f.mu.Unlock()
		if failTracking {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "error", "message": "tracking down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
	})

	mux.HandleFunc("/api/products/view-history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success", "count": 0, "products": []interface{}{},
		})
	})

	mux.HandleFunc("/api/products/similar/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		failSimilar := f.failSimilar
		f.mu.Unlock()
		if failSimilar {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"status": "error", "message": "similar products unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success", "count": 1,
			"similar_products": []map[string]interface{}{{"id": 10, "name": "Biotin"}},
		})
	})

	mux.HandleFunc("/api/products/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"product": map[string]interface{}{
				"id": 9, "name": "Collagen", "category": "beauty", "age_range": "18-45",
			},
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
	})

	return mux
}

// testClient drives the Fiber app like one browser would: it carries its
// cookies (the device id) and bearer token across requests.
type testClient struct {
	t       *testing.T
	app     *fiber.App
	token   string
	cookies map[string]string
}

func (tc *testClient) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	tc.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	for name, value := range tc.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := tc.app.Test(req, -1)
	assert.NoError(tc.t, err)
	for _, cookie := range resp.Cookies() {
		tc.cookies[cookie.Name] = cookie.Value
	}

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	resp.Body.Close()
	return resp, decoded
}

// setupApp wires a Fiber app against the fake backend with an in-memory
// sqlite local store, mirroring the production wiring minus redis/rabbitmq.
func setupApp(t *testing.T) (*testClient, *fakeBackend) {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	backend := newFakeBackend()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	localStore := repositories.NewGORMLocalStore(db)
	if err := localStore.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	client := upstream.NewClient(upstream.Config{BaseURL: server.URL})
	productService := services.NewProductService(client, nil, nil)
	authService := services.NewAuthService(client, localStore, jwtSecret)

	authHandler := handlers.NewAuthHandler(authService, productService)
	productHandler := handlers.NewProductHandler(productService, authService, localStore)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)

	return &testClient{t: t, app: app, cookies: make(map[string]string)}, backend
}

// TestMain runs setup and teardown for all tests.
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestSignupLoginProfileRoundTrip(t *testing.T) {
	tc, _ := setupApp(t)

	// Signup auto-logins and reports the survey as pending.
	resp, body := tc.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "new@example.com", "password": "password123", "name": "New User",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	tc.token, _ = body["token"].(string)
	assert.NotEmpty(t, tc.token)
	user := body["user"].(map[string]interface{})
	assert.Nil(t, user["profile"])

	resp, body = tc.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["survey_required"])

	// Survey submission attaches the profile.
	resp, body = tc.do(http.MethodPost, "/api/v1/user/profile", map[string]interface{}{
		"age": 30, "weight": 65, "health_concerns": "mất ngủ",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "mất ngủ", profile["health_concerns"])

	resp, body = tc.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["survey_required"])

	// Logout revokes the token.
	resp, _ = tc.do(http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = tc.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	tc, _ := setupApp(t)

	resp, body := tc.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "whatever1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	// The backend's message is surfaced verbatim.
	assert.Contains(t, body["error"], "Sai tài khoản")
}

func TestAuthFlowForcedSurvey(t *testing.T) {
	tc, _ := setupApp(t)

	resp, body := tc.do(http.MethodPost, "/api/v1/auth/flow/open", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "login", body["step"])

	resp, body = tc.do(http.MethodPost, "/api/v1/auth/flow/toggle", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	flow := body["flow"].(map[string]interface{})
	assert.Equal(t, "signup", flow["step"])

	// Signup through the flow always lands in the forced survey.
	resp, body = tc.do(http.MethodPost, "/api/v1/auth/flow/signup", map[string]string{
		"email": "new@example.com", "password": "password123", "name": "New User",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	flow = body["flow"].(map[string]interface{})
	assert.Equal(t, "survey", flow["step"])
	assert.Equal(t, true, flow["forced"])

	// Closing while forced is rejected with a warning.
	resp, body = tc.do(http.MethodPost, "/api/v1/auth/flow/close", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["message"], "health survey")

	// Completing the survey closes the flow.
	resp, body = tc.do(http.MethodPost, "/api/v1/auth/flow/survey", map[string]interface{}{
		"age": 30, "weight": 65, "health_concerns": "mất ngủ",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	flow = body["flow"].(map[string]interface{})
	assert.Equal(t, false, flow["open"])
	assert.Equal(t, false, flow["forced"])
}

func TestSearchEmptyQuerySkipsBackend(t *testing.T) {
	tc, backend := setupApp(t)

	resp, body := tc.do(http.MethodGet, "/api/v1/products/search?q=", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])

	backend.mu.Lock()
	calls := backend.searchCalls
	backend.mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestSearchFilterAndSort(t *testing.T) {
	tc, _ := setupApp(t)

	// Unfiltered, sorted by match score descending.
	resp, body := tc.do(http.MethodGet, "/api/v1/products/search?q=omega&sort=match", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	products := body["products"].([]interface{})
	assert.Len(t, products, 2)
	first := products[0].(map[string]interface{})
	assert.Equal(t, "Omega 3", first["name"])

	// Category filter is case-insensitive and exact.
	resp, body = tc.do(http.MethodGet, "/api/v1/products/search?q=omega&category=JOINT", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	products = body["products"].([]interface{})
	assert.Len(t, products, 1)
	assert.Equal(t, "Glucosamine", products[0].(map[string]interface{})["name"])

	// Age bracket keeps only compatible ranges.
	resp, body = tc.do(http.MethodGet, "/api/v1/products/search?q=omega&age=26-40", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	products = body["products"].([]interface{})
	assert.Len(t, products, 1)
	assert.Equal(t, "Omega 3", products[0].(map[string]interface{})["name"])

	// The query was remembered once despite the repeat searches.
	resp, body = tc.do(http.MethodGet, "/api/v1/search/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	history := body["history"].([]interface{})
	assert.Equal(t, []interface{}{"omega"}, history)

	// Deleting without a query clears the history.
	resp, _ = tc.do(http.MethodDelete, "/api/v1/search/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = tc.do(http.MethodGet, "/api/v1/search/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])
}

func TestProductDetailAnonymous(t *testing.T) {
	tc, backend := setupApp(t)

	resp, body := tc.do(http.MethodGet, "/api/v1/products/9", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "Collagen", product["name"])

	// Anonymous visits never hit the tracking endpoint.
	backend.mu.Lock()
	calls := backend.trackCalls
	backend.mu.Unlock()
	assert.Equal(t, 0, calls)

	// The recently-viewed cache is still updated, independent of login.
	resp, body = tc.do(http.MethodGet, "/api/v1/products/recent", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

func TestProductDetailSimilarFailureDegrades(t *testing.T) {
	tc, backend := setupApp(t)
	backend.mu.Lock()
	backend.failSimilar = true
	backend.mu.Unlock()

	resp, body := tc.do(http.MethodGet, "/api/v1/products/9", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "Collagen", product["name"])
	similar := product["similar_products"].([]interface{})
	assert.Empty(t, similar)
}

func TestProductDetailTracksLoggedInUser(t *testing.T) {
	tc, backend := setupApp(t)

	_, body := tc.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "viewer@example.com", "password": "password123", "name": "Viewer",
	})
	tc.token, _ = body["token"].(string)
	assert.NotEmpty(t, tc.token)

	// Even when tracking fails backend-side, the detail load succeeds.
	backend.mu.Lock()
	backend.failTracking = true
	backend.mu.Unlock()

	resp, _ := tc.do(http.MethodGet, "/api/v1/products/9", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	backend.mu.Lock()
	calls := backend.trackCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestPersonalizedRequiresAuth(t *testing.T) {
	tc, _ := setupApp(t)

	resp, _ := tc.do(http.MethodGet, "/api/v1/products/personalized", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, body := tc.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "rec@example.com", "password": "password123", "name": "Rec User",
	})
	tc.token, _ = body["token"].(string)

	resp, body = tc.do(http.MethodGet, "/api/v1/products/personalized", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	recs := body["recommendations"].([]interface{})
	assert.Len(t, recs, 1)
	assert.Equal(t, "Melatonin", recs[0].(map[string]interface{})["name"])
}

func TestLandingBundle(t *testing.T) {
	tc, _ := setupApp(t)

	resp, body := tc.do(http.MethodGet, "/api/v1/products/landing", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(40), body["total_products"])
	categories := body["categories"].([]interface{})
	assert.Len(t, categories, 1)
}

func TestFavoritesToggle(t *testing.T) {
	tc, _ := setupApp(t)

	resp, body := tc.do(http.MethodPost, "/api/v1/products/7/favorite", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["favorited"])

	resp, body = tc.do(http.MethodPost, "/api/v1/products/7/favorite", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["favorited"])

	resp, body = tc.do(http.MethodGet, "/api/v1/products/favorites", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])
}

func TestValidationErrors(t *testing.T) {
	tc, _ := setupApp(t)

	// Missing password fails validation before any backend call.
	resp, body := tc.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "test@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", body["message"])
	errs := body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "Password")
}
