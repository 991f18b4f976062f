package upstream_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vitamart/internal/upstream"

	"github.com/stretchr/testify/assert"
)

func newTestClient(handler http.Handler) (*upstream.Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := upstream.NewClient(upstream.Config{BaseURL: server.URL})
	return client, server
}

func TestClient_LoginSuccess(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test@example.com", body["email"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"user": map[string]interface{}{
				"email":   "test@example.com",
				"name":    "Test User",
				"profile": nil,
			},
		})
	}))
	defer server.Close()

	user, err := client.Login("test@example.com", "password123")
	assert.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "Test User", user.Name)
	assert.Nil(t, user.Profile)
}

func TestClient_ErrorEnvelopeOnHTTP200(t *testing.T) {
	// The backend reports business errors inside the envelope while still
	// answering 200; that must be treated as a failure.
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "error",
			"message": "Sai tài khoản",
		})
	}))
	defer server.Close()

	_, err := client.Login("test@example.com", "wrong")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Sai tài khoản")
}

func TestClient_NonSuccessHTTPStatus(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "error",
			"message": "Sai tài khoản",
		})
	}))
	defer server.Close()

	// The envelope message is preferred over a bare status-code error.
	_, err := client.Login("test@example.com", "wrong")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Sai tài khoản")
}

func TestClient_SearchOmitsEmptyEmail(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasEmail := body["email"]
		assert.False(t, hasEmail)
		assert.Equal(t, "omega", body["query"])
		assert.Equal(t, float64(20), body["limit"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"query":  "omega",
			"count":  1,
			"products": []map[string]interface{}{
				{"id": 1, "name": "Omega 3", "category": "vitamin", "match_score": 88},
			},
		})
	}))
	defer server.Close()

	products, err := client.Search("omega", "", 20)
	assert.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "Omega 3", products[0].Name)
	assert.Equal(t, float64(88), products[0].MatchScore)
}

func TestClient_LandingParsesBundle(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products/landing", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"categories": []map[string]interface{}{
				{"category": "vitamin", "count": 12},
			},
			"popular_products":        []map[string]interface{}{{"id": 1, "name": "Omega 3"}},
			"general_recommendations": []map[string]interface{}{{"id": 2, "name": "Vitamin C"}},
			"total_products":          40,
		})
	}))
	defer server.Close()

	data, err := client.Landing()
	assert.NoError(t, err)
	assert.Len(t, data.Categories, 1)
	assert.Equal(t, "vitamin", data.Categories[0].Category)
	assert.Equal(t, 40, data.TotalProducts)
	assert.Equal(t, "Vitamin C", data.GeneralRecommendations[0].Name)
}

func TestClient_TrackView(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/view", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test@example.com", body["email"])
		assert.Equal(t, float64(9), body["product_id"])
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "success"})
	}))
	defer server.Close()

	assert.NoError(t, client.TrackView("test@example.com", 9))
}

func TestClient_TransportErrorSurfacesImmediately(t *testing.T) {
	// No retry anywhere: a refused connection is an immediate failure.
	client := upstream.NewClient(upstream.Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Categories()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "backend request failed")
}

func TestClient_HealthToleratesBareProbe(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer server.Close()

	assert.NoError(t, client.Health())
}
