package models

// Product represents a healthcare product in the catalog. Products are
// read-only from the gateway's perspective: every field is sourced from
// backend responses, never constructed here.
type Product struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Description    string  `json:"description"`
	TargetGender   string  `json:"target_gender"`
	HealthGoal     string  `json:"health_goal"`
	AgeRange       string  `json:"age_range,omitempty"`
	WeightRange    string  `json:"weight_range,omitempty"`
	Features       string  `json:"features,omitempty"`
	SearchKeywords string  `json:"search_keywords,omitempty"`
	MatchScore     float64 `json:"match_score,omitempty"`
	Relevance      float64 `json:"relevance,omitempty"`
}

// ProductDetail is a product plus its lazily fetched similar products.
type ProductDetail struct {
	Product
	SimilarProducts []Product `json:"similar_products"`
	ViewedCount     int       `json:"viewed_count,omitempty"`
}

// CategoryInfo describes one browsable category with a representative product.
type CategoryInfo struct {
	Category        string   `json:"category"`
	Count           int      `json:"count"`
	FeaturedProduct *Product `json:"featured_product,omitempty"`
}
