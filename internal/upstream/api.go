package upstream

import (
	"errors"

	"vitamart/internal/models"
)

// API is the typed façade over the recommendation backend. Every method maps
// to exactly one REST endpoint; the matching and recommendation computation
// happens on the backend, this side only transports results.
type API interface {
	Signup(email, password, name string) (*models.User, error)
	Login(email, password string) (*models.User, error)
	SaveProfile(email string, profile models.UserProfile) (*models.UserProfile, error)
	Search(query, email string, limit int) ([]models.Product, error)
	Personalized(email string, limit int) ([]models.Product, error)
	Landing() (*LandingData, error)
	ProductDetail(id int) (*models.ProductDetail, error)
	SimilarProducts(id int) ([]models.Product, error)
	TrackView(email string, productID int) error
	ViewHistory(email string) ([]models.Product, error)
	Categories() ([]string, error)
	Health() error
}

// Envelope is the status wrapper every backend response carries. A non
// "success" status is a failure even when the HTTP status is 200.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Err returns a non-nil error when the envelope reports a failure, carrying
// the backend's message verbatim.
func (e Envelope) Err() error {
	if e.Status == "success" {
		return nil
	}
	if e.Message != "" {
		return errors.New(e.Message)
	}
	return errors.New("backend reported an error")
}

// LandingData is the anonymous-safe bundle shown to any visitor.
type LandingData struct {
	Categories             []models.CategoryInfo `json:"categories"`
	PopularProducts        []models.Product      `json:"popular_products"`
	GeneralRecommendations []models.Product      `json:"general_recommendations"`
	TotalProducts          int                   `json:"total_products"`
}

type authResponse struct {
	Envelope
	User *models.User `json:"user,omitempty"`
}

type profileResponse struct {
	Envelope
	Profile *models.UserProfile `json:"profile,omitempty"`
}

type searchResponse struct {
	Envelope
	Query    string           `json:"query"`
	Count    int              `json:"count"`
	Products []models.Product `json:"products"`
}

type personalizedResponse struct {
	Envelope
	Count           int              `json:"count"`
	Recommendations []models.Product `json:"recommendations"`
	BasedOn         struct {
		HasProfile         bool `json:"has_profile"`
		ViewHistoryCount   int  `json:"view_history_count"`
		SearchHistoryCount int  `json:"search_history_count"`
	} `json:"based_on"`
}

type landingResponse struct {
	Envelope
	LandingData
}

type productDetailResponse struct {
	Envelope
	Product models.ProductDetail `json:"product"`
}

type similarProductsResponse struct {
	Envelope
	Count           int              `json:"count"`
	SimilarProducts []models.Product `json:"similar_products"`
}

type viewHistoryResponse struct {
	Envelope
	Count    int              `json:"count"`
	Products []models.Product `json:"products"`
}

type categoriesResponse struct {
	Envelope
	Count      int      `json:"count"`
	Categories []string `json:"categories"`
}
