package repositories

import (
	"fmt"
	"time"

	"vitamart/internal/models"

	"gorm.io/gorm"
)

// GORMLocalStore is a GORM implementation of LocalStore. It works against
// the on-device sqlite file by default and against postgres when configured.
type GORMLocalStore struct {
	db *gorm.DB
}

// NewGORMLocalStore creates a new instance of GORMLocalStore.
func NewGORMLocalStore(db *gorm.DB) *GORMLocalStore {
	return &GORMLocalStore{
		db: db,
	}
}

// AutoMigrate creates the local state tables.
func (r *GORMLocalStore) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Session{},
		&models.ProfileRecord{},
		&models.RecentView{},
		&models.SearchEntry{},
		&models.Favorite{},
	)
}

// SaveSession persists a session record.
func (r *GORMLocalStore) SaveSession(session *models.Session) error {
	if err := r.db.Save(session).Error; err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by its ID.
func (r *GORMLocalStore) GetSession(id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("session %s not found", id)
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &session, nil
}

// DeleteSession revokes a session.
func (r *GORMLocalStore) DeleteSession(id string) error {
	res := r.db.Delete(&models.Session{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s not found for deletion", id)
	}
	return nil
}

// SaveProfile upserts the locally persisted profile copy for email.
func (r *GORMLocalStore) SaveProfile(email string, profile *models.UserProfile) error {
	record := models.ProfileRecord{
		Email:          email,
		Age:            profile.Age,
		Weight:         profile.Weight,
		HealthConcerns: profile.HealthConcerns,
		Diseases:       profile.Diseases,
		UpdatedAt:      profile.UpdatedAt,
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	if err := r.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", email, err)
	}
	return nil
}

// GetProfile retrieves the locally persisted profile copy, or nil when none
// has been saved yet.
func (r *GORMLocalStore) GetProfile(email string) (*models.UserProfile, error) {
	var record models.ProfileRecord
	if err := r.db.First(&record, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile for %s: %w", email, err)
	}
	return &models.UserProfile{
		Age:            record.Age,
		Weight:         record.Weight,
		HealthConcerns: record.HealthConcerns,
		Diseases:       record.Diseases,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}

// DeleteProfile removes the local profile copy. Missing rows are not an
// error; logout wipes unconditionally.
func (r *GORMLocalStore) DeleteProfile(email string) error {
	if err := r.db.Delete(&models.ProfileRecord{}, "email = ?", email).Error; err != nil {
		return fmt.Errorf("failed to delete profile for %s: %w", email, err)
	}
	return nil
}

// AddRecentView prepends a product to the owner's recently viewed cache and
// trims it to MaxRecentViews. Re-viewing a product moves it to the front.
func (r *GORMLocalStore) AddRecentView(owner string, product models.Product) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.RecentView{}, "owner = ? AND product_id = ?", owner, product.ID).Error; err != nil {
			return err
		}
		view := models.RecentView{
			Owner:     owner,
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			ViewedAt:  time.Now(),
		}
		if err := tx.Create(&view).Error; err != nil {
			return err
		}

		var stale []models.RecentView
		if err := tx.Where("owner = ?", owner).
			Order("viewed_at DESC, id DESC").
			Offset(MaxRecentViews).
			Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) > 0 {
			if err := tx.Delete(&stale).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record recent view: %w", err)
	}
	return nil
}

// RecentViews returns the owner's recently viewed products, newest first.
func (r *GORMLocalStore) RecentViews(owner string) ([]models.RecentView, error) {
	var views []models.RecentView
	if err := r.db.Where("owner = ?", owner).
		Order("viewed_at DESC, id DESC").
		Limit(MaxRecentViews).
		Find(&views).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent views: %w", err)
	}
	return views, nil
}

// ClearRecentViews wipes the owner's recently viewed cache.
func (r *GORMLocalStore) ClearRecentViews(owner string) error {
	if err := r.db.Delete(&models.RecentView{}, "owner = ?", owner).Error; err != nil {
		return fmt.Errorf("failed to clear recent views: %w", err)
	}
	return nil
}

// AddSearchQuery remembers a query for the owner, deduplicated and capped at
// MaxSearchHistory entries, most recent first.
func (r *GORMLocalStore) AddSearchQuery(owner, query string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.SearchEntry{}, "owner = ? AND query = ?", owner, query).Error; err != nil {
			return err
		}
		entry := models.SearchEntry{
			Owner:      owner,
			Query:      query,
			SearchedAt: time.Now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		var stale []models.SearchEntry
		if err := tx.Where("owner = ?", owner).
			Order("searched_at DESC, id DESC").
			Offset(MaxSearchHistory).
			Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) > 0 {
			if err := tx.Delete(&stale).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record search query: %w", err)
	}
	return nil
}

// SearchHistory returns the owner's remembered queries, most recent first.
func (r *GORMLocalStore) SearchHistory(owner string) ([]string, error) {
	var entries []models.SearchEntry
	if err := r.db.Where("owner = ?", owner).
		Order("searched_at DESC, id DESC").
		Limit(MaxSearchHistory).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	queries := make([]string, 0, len(entries))
	for _, e := range entries {
		queries = append(queries, e.Query)
	}
	return queries, nil
}

// RemoveSearchQuery forgets a single remembered query.
func (r *GORMLocalStore) RemoveSearchQuery(owner, query string) error {
	if err := r.db.Delete(&models.SearchEntry{}, "owner = ? AND query = ?", owner, query).Error; err != nil {
		return fmt.Errorf("failed to remove search query: %w", err)
	}
	return nil
}

// ClearSearchHistory forgets all remembered queries for the owner.
func (r *GORMLocalStore) ClearSearchHistory(owner string) error {
	if err := r.db.Delete(&models.SearchEntry{}, "owner = ?", owner).Error; err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}

// ToggleFavorite flips the favorite mark for a product and reports whether it
// is now favorited.
func (r *GORMLocalStore) ToggleFavorite(owner string, productID int) (bool, error) {
	var favorited bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Favorite{}, "owner = ? AND product_id = ?", owner, productID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			favorited = false
			return nil
		}
		favorited = true
		return tx.Create(&models.Favorite{Owner: owner, ProductID: productID}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorited, nil
}

// Favorites returns the owner's favorited product ids.
func (r *GORMLocalStore) Favorites(owner string) ([]int, error) {
	var favorites []models.Favorite
	if err := r.db.Where("owner = ?", owner).Order("id ASC").Find(&favorites).Error; err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	ids := make([]int, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.ProductID)
	}
	return ids, nil
}
