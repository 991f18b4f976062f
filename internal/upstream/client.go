package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"vitamart/internal/models"
)

// Client is the HTTP implementation of API. It configures the base URL, JSON
// headers and request/response logging; there is no retry or backoff, a
// transport failure is surfaced to the caller immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds backend connection details.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new backend client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do performs one request against the backend and decodes the JSON body into
// out. HTTP-level failures and non-2xx statuses become errors; the envelope
// status inside out is checked by the caller.
func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("backend %s %s failed: %v", method, path, err)
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("backend %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error bodies still carry the envelope; prefer its message.
		var env Envelope
		if decodeErr := json.NewDecoder(resp.Body).Decode(&env); decodeErr == nil && env.Message != "" {
			return fmt.Errorf("%s", env.Message)
		}
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

// Signup creates a new account on the backend.
func (c *Client) Signup(email, password, name string) (*models.User, error) {
	payload := map[string]string{"email": email, "password": password, "name": name}
	var resp authResponse
	if err := c.do(http.MethodPost, "/auth/signup", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Login authenticates against the backend and returns the user object.
func (c *Client) Login(email, password string) (*models.User, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.do(http.MethodPost, "/auth/login", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("backend returned no user")
	}
	return resp.User, nil
}

// SaveProfile creates or updates the health profile for email and returns
// whatever the backend echoes back.
func (c *Client) SaveProfile(email string, profile models.UserProfile) (*models.UserProfile, error) {
	payload := map[string]interface{}{
		"email":           email,
		"age":             profile.Age,
		"weight":          profile.Weight,
		"health_concerns": profile.HealthConcerns,
		"diseases":        profile.Diseases,
	}
	var resp profileResponse
	if err := c.do(http.MethodPost, "/user/profile", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, fmt.Errorf("backend returned no profile")
	}
	return resp.Profile, nil
}

// Search queries products. Email is optional and lets the backend personalize
// relevance for logged-in users.
func (c *Client) Search(query, email string, limit int) ([]models.Product, error) {
	payload := map[string]interface{}{"query": query, "limit": limit}
	if email != "" {
		payload["email"] = email
	}
	var resp searchResponse
	if err := c.do(http.MethodPost, "/api/products/search", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Personalized fetches recommendations computed for one user.
func (c *Client) Personalized(email string, limit int) ([]models.Product, error) {
	payload := map[string]interface{}{"email": email, "limit": limit}
	var resp personalizedResponse
	if err := c.do(http.MethodPost, "/api/products/personalized", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Recommendations, nil
}

// Landing fetches categories, popular products and general recommendations
// in a single call.
func (c *Client) Landing() (*LandingData, error) {
	var resp landingResponse
	if err := c.do(http.MethodGet, "/api/products/landing", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.LandingData, nil
}

// ProductDetail fetches a single product by id.
func (c *Client) ProductDetail(id int) (*models.ProductDetail, error) {
	var resp productDetailResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// SimilarProducts fetches products related to the given product id.
func (c *Client) SimilarProducts(id int) ([]models.Product, error) {
	var resp similarProductsResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/products/similar/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.SimilarProducts, nil
}

// TrackView records that email opened productID. Fire-and-forget from the
// caller's perspective.
func (c *Client) TrackView(email string, productID int) error {
	payload := map[string]interface{}{"email": email, "product_id": productID}
	var resp Envelope
	if err := c.do(http.MethodPost, "/api/products/view", payload, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// ViewHistory fetches the backend-tracked list of products email has opened.
func (c *Client) ViewHistory(email string) ([]models.Product, error) {
	payload := map[string]string{"email": email}
	var resp viewHistoryResponse
	if err := c.do(http.MethodPost, "/api/products/view-history", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Categories fetches the flat category name list.
func (c *Client) Categories() ([]string, error) {
	var resp categoriesResponse
	if err := c.do(http.MethodGet, "/api/products/categories", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// Health probes the backend liveness endpoint.
func (c *Client) Health() error {
	var resp Envelope
	if err := c.do(http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	// Some backend revisions answer the probe without an envelope status.
	if resp.Status == "" {
		return nil
	}
	return resp.Err()
}
