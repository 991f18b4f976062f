package repositories

import (
	"fmt"
	"sync"
	"time"

	"vitamart/internal/models"
)

// MockLocalStore is an in-memory implementation of LocalStore.
type MockLocalStore struct {
	mu            sync.RWMutex
	sessions      map[string]models.Session
	profiles      map[string]models.UserProfile
	recentViews   map[string][]models.RecentView
	searchHistory map[string][]models.SearchEntry
	favorites     map[string][]int
}

// NewMockLocalStore creates a new instance of MockLocalStore.
func NewMockLocalStore() *MockLocalStore {
	return &MockLocalStore{
		sessions:      make(map[string]models.Session),
		profiles:      make(map[string]models.UserProfile),
		recentViews:   make(map[string][]models.RecentView),
		searchHistory: make(map[string][]models.SearchEntry),
		favorites:     make(map[string][]int),
	}
}

// SaveSession persists a session record.
func (r *MockLocalStore) SaveSession(session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// GetSession retrieves a session by its ID.
func (r *MockLocalStore) GetSession(id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return &session, nil
}

// DeleteSession revokes a session.
func (r *MockLocalStore) DeleteSession(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s not found for deletion", id)
	}
	delete(r.sessions, id)
	return nil
}

// SaveProfile upserts the local profile copy for email.
func (r *MockLocalStore) SaveProfile(email string, profile *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *profile
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	r.profiles[email] = p
	return nil
}

// GetProfile retrieves the local profile copy, or nil when absent.
func (r *MockLocalStore) GetProfile(email string) (*models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[email]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// DeleteProfile removes the local profile copy.
func (r *MockLocalStore) DeleteProfile(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, email)
	return nil
}

// AddRecentView prepends a product to the owner's recently viewed cache.
func (r *MockLocalStore) AddRecentView(owner string, product models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := r.recentViews[owner]
	kept := make([]models.RecentView, 0, len(views)+1)
	kept = append(kept, models.RecentView{
		Owner:     owner,
		ProductID: product.ID,
		Name:      product.Name,
		Category:  product.Category,
		ViewedAt:  time.Now(),
	})
	for _, v := range views {
		if v.ProductID != product.ID {
			kept = append(kept, v)
		}
	}
	if len(kept) > MaxRecentViews {
		kept = kept[:MaxRecentViews]
	}
	r.recentViews[owner] = kept
	return nil
}

// RecentViews returns the owner's recently viewed products, newest first.
func (r *MockLocalStore) RecentViews(owner string) ([]models.RecentView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	views := r.recentViews[owner]
	out := make([]models.RecentView, len(views))
	copy(out, views)
	return out, nil
}

// ClearRecentViews wipes the owner's recently viewed cache.
func (r *MockLocalStore) ClearRecentViews(owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recentViews, owner)
	return nil
}

// AddSearchQuery remembers a query for the owner.
func (r *MockLocalStore) AddSearchQuery(owner, query string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.searchHistory[owner]
	kept := make([]models.SearchEntry, 0, len(entries)+1)
	kept = append(kept, models.SearchEntry{Owner: owner, Query: query, SearchedAt: time.Now()})
	for _, e := range entries {
		if e.Query != query {
			kept = append(kept, e)
		}
	}
	if len(kept) > MaxSearchHistory {
		kept = kept[:MaxSearchHistory]
	}
	r.searchHistory[owner] = kept
	return nil
}

// SearchHistory returns the owner's remembered queries, most recent first.
func (r *MockLocalStore) SearchHistory(owner string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.searchHistory[owner]
	queries := make([]string, 0, len(entries))
	for _, e := range entries {
		queries = append(queries, e.Query)
	}
	return queries, nil
}

// RemoveSearchQuery forgets a single remembered query.
func (r *MockLocalStore) RemoveSearchQuery(owner, query string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.searchHistory[owner]
	kept := entries[:0]
	for _, e := range entries {
		if e.Query != query {
			kept = append(kept, e)
		}
	}
	r.searchHistory[owner] = kept
	return nil
}

// ClearSearchHistory forgets all remembered queries for the owner.
func (r *MockLocalStore) ClearSearchHistory(owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.searchHistory, owner)
	return nil
}

// ToggleFavorite flips the favorite mark for a product.
func (r *MockLocalStore) ToggleFavorite(owner string, productID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.favorites[owner]
	for i, id := range ids {
		if id == productID {
			r.favorites[owner] = append(ids[:i], ids[i+1:]...)
			return false, nil
		}
	}
	r.favorites[owner] = append(ids, productID)
	return true, nil
}

// Favorites returns the owner's favorited product ids.
func (r *MockLocalStore) Favorites(owner string) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.favorites[owner]
	out := make([]int, len(ids))
	copy(out, ids)
	return out, nil
}
