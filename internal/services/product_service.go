package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vitamart/internal/models"
	"vitamart/internal/upstream"

	"vitamart/pkg/cache"
)

const (
	searchLimit       = 20
	personalizedLimit = 10
	landingCacheKey   = "landing:v1"
	landingCacheTTL   = 5 * time.Minute
)

// ViewPublisher publishes best-effort product view events. Satisfied by the
// rabbitmq client; nil disables publishing.
type ViewPublisher interface {
	PublishProductViewed(email string, productID int) error
}

// ProductService caches the most recent data fetched for each storefront
// slice: search results, popular products, personalized recommendations, the
// current product detail, categories and view history. Every slice is a
// last-write-wins cache replaced wholesale by the next action.
type ProductService struct {
	backend   upstream.API
	cache     *cache.Client // nil-safe
	publisher ViewPublisher // nil-safe

	searchToken uint64 // monotonically increasing, guards stale search responses

	mu             sync.Mutex
	searchResults  []models.Product
	popular        []models.Product
	personalized   []models.Product
	viewHistory    []models.Product
	categories     []models.CategoryInfo
	currentProduct *models.ProductDetail
	loading        bool
	lastErr        string
}

// NewProductService creates a new ProductService. cacheClient and publisher
// may be nil; the service then skips caching and event publishing.
func NewProductService(backend upstream.API, cacheClient *cache.Client, publisher ViewPublisher) *ProductService {
	return &ProductService{
		backend:   backend,
		cache:     cacheClient,
		publisher: publisher,
	}
}

// Search replaces the search results for the given query. A blank query
// short-circuits to clearing the results without a network call. Responses
// that arrive after a newer search was issued are discarded.
func (s *ProductService) Search(query string, user *models.User) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.ClearSearchResults()
		return nil, nil
	}

	token := atomic.AddUint64(&s.searchToken, 1)
	s.begin()

	email := ""
	if user != nil {
		email = user.Email
	}
	products, err := s.backend.Search(query, email, searchLimit)
	if err != nil {
		s.fail(err.Error())
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}

	if !s.commitSearch(token, products) {
		log.Printf("discarding stale search response for %q", query)
		return products, nil
	}
	return products, nil
}

// commitSearch stores the results only when token still identifies the most
// recently issued search.
func (s *ProductService) commitSearch(token uint64, products []models.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if atomic.LoadUint64(&s.searchToken) != token {
		return false
	}
	s.searchResults = products
	s.lastErr = ""
	return true
}

// Personalized replaces the recommendation slice for a logged-in user.
func (s *ProductService) Personalized(user *models.User) ([]models.Product, error) {
	if user == nil {
		s.fail(ErrNotLoggedIn.Error())
		return nil, ErrNotLoggedIn
	}

	s.begin()
	recs, err := s.backend.Personalized(user.Email, personalizedLimit)
	if err != nil {
		s.fail(err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.personalized = recs
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return recs, nil
}

// Landing fills categories, popular products and the general recommendation
// list in one anonymous-safe call. Results are cached briefly in redis;
// cache trouble degrades silently to the backend call.
func (s *ProductService) Landing() (*upstream.LandingData, error) {
	if data := s.cachedLanding(); data != nil {
		s.applyLanding(data)
		return data, nil
	}

	s.begin()
	data, err := s.backend.Landing()
	if err != nil {
		s.fail(err.Error())
		return nil, err
	}
	s.applyLanding(data)
	s.storeLanding(data)
	return data, nil
}

// Detail loads a product page: detail first, then similar products. A
// similar-products failure yields an empty list, never a failed load. With a
// user present the view is tracked best-effort and the view history
// refreshed; tracking trouble is logged, not surfaced.
func (s *ProductService) Detail(id int, user *models.User) (*models.ProductDetail, error) {
	s.begin()

	detail, err := s.backend.ProductDetail(id)
	if err != nil {
		s.fail(err.Error())
		return nil, err
	}

	similar, err := s.backend.SimilarProducts(id)
	if err != nil {
		log.Printf("similar products for %d unavailable: %v", id, err)
		similar = []models.Product{}
	}
	if similar == nil {
		similar = []models.Product{}
	}
	detail.SimilarProducts = similar

	if user != nil {
		s.TrackView(user, id)
		s.RefreshViewHistory(user)
	}

	s.mu.Lock()
	s.currentProduct = detail
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return detail, nil
}

// TrackView records a product view for a logged-in user, both on the backend
// and as a published event. Best-effort: a no-op without a user, and every
// failure is logged rather than surfaced.
func (s *ProductService) TrackView(user *models.User, productID int) {
	if user == nil {
		return
	}
	if err := s.backend.TrackView(user.Email, productID); err != nil {
		log.Printf("failed to track view of %d for %s: %v", productID, user.Email, err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishProductViewed(user.Email, productID); err != nil {
			log.Printf("failed to publish view event for %d: %v", productID, err)
		}
	}
}

// RefreshViewHistory replaces the cached view history for a logged-in user.
// A no-op without a user; failures are logged only.
func (s *ProductService) RefreshViewHistory(user *models.User) []models.Product {
	if user == nil {
		return nil
	}
	products, err := s.backend.ViewHistory(user.Email)
	if err != nil {
		log.Printf("failed to refresh view history for %s: %v", user.Email, err)
		return nil
	}
	s.mu.Lock()
	s.viewHistory = products
	s.mu.Unlock()
	return products
}

// Categories fetches the flat category list straight through; it is not one
// of the cached slices.
func (s *ProductService) Categories() ([]string, error) {
	return s.backend.Categories()
}

// ClearSearchResults empties the search slice without touching anything else.
func (s *ProductService) ClearSearchResults() {
	s.mu.Lock()
	s.searchResults = nil
	s.mu.Unlock()
}

// ClearError resets the recorded error.
func (s *ProductService) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// SearchResults returns the cached search slice.
func (s *ProductService) SearchResults() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchResults
}

// PopularProducts returns the cached popular slice.
func (s *ProductService) PopularProducts() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popular
}

// PersonalizedRecommendations returns the cached recommendation slice.
func (s *ProductService) PersonalizedRecommendations() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personalized
}

// ViewHistory returns the cached backend view history.
func (s *ProductService) ViewHistory() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewHistory
}

// CategoryInfos returns the cached landing categories.
func (s *ProductService) CategoryInfos() []models.CategoryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories
}

// CurrentProduct returns the last loaded detail page.
func (s *ProductService) CurrentProduct() *models.ProductDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentProduct
}

// IsLoading reports whether an action is in flight.
func (s *ProductService) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the most recent error message, empty after a success.
func (s *ProductService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ProductService) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *ProductService) fail(msg string) {
	s.mu.Lock()
	s.loading = false
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *ProductService) applyLanding(data *upstream.LandingData) {
	s.mu.Lock()
	s.categories = data.Categories
	s.popular = data.PopularProducts
	// Anonymous visitors see the general list where recommendations go.
	s.personalized = data.GeneralRecommendations
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *ProductService) cachedLanding() *upstream.LandingData {
	if s.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw, err := s.cache.Get(ctx, landingCacheKey)
	if err != nil {
		return nil
	}
	var data upstream.LandingData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("dropping malformed landing cache entry: %v", err)
		return nil
	}
	return &data
}

func (s *ProductService) storeLanding(data *upstream.LandingData) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to encode landing data for cache: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, landingCacheKey, raw, landingCacheTTL); err != nil {
		log.Printf("failed to cache landing data: %v", err)
	}
}
