package repositories

import "vitamart/internal/models"

// Limits on the client-side caches, matching what the storefront keeps.
const (
	MaxRecentViews   = 4
	MaxSearchHistory = 10
)

// LocalStore is the single persistence adapter for per-client durable state:
// sessions, the health profile copy, recently viewed products, search history
// and favorites. Services call it on every mutation instead of duplicating
// writes at each call site.
type LocalStore interface {
	SaveSession(session *models.Session) error
	GetSession(id string) (*models.Session, error)
	DeleteSession(id string) error

	SaveProfile(email string, profile *models.UserProfile) error
	GetProfile(email string) (*models.UserProfile, error)
	DeleteProfile(email string) error

	AddRecentView(owner string, product models.Product) error
	RecentViews(owner string) ([]models.RecentView, error)
	ClearRecentViews(owner string) error

	AddSearchQuery(owner, query string) error
	SearchHistory(owner string) ([]string, error)
	RemoveSearchQuery(owner, query string) error
	ClearSearchHistory(owner string) error

	ToggleFavorite(owner string, productID int) (bool, error)
	Favorites(owner string) ([]int, error)
}
