package handlers

import (
	"log"

	"vitamart/internal/middleware"
	"vitamart/internal/models"
	"vitamart/internal/repositories"
	"vitamart/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the storefront's product pages:
// landing, search, detail, recommendations and the per-client caches.
type ProductHandler struct {
	productService *services.ProductService
	authService    *services.AuthService
	store          repositories.LocalStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService, authService *services.AuthService, store repositories.LocalStore) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		authService:    authService,
		store:          store,
	}
}

// RegisterRoutes registers the product routes with the Fiber app. Static
// paths are registered before the :id parameter route.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	optional := middleware.OptionalAuth(h.authService)
	required := middleware.AuthRequired(h.authService)

	products := router.Group("/products")
	products.Get("/landing", h.HandleLanding)
	products.Get("/search", optional, h.HandleSearch)
	products.Get("/categories", h.HandleCategories)
	products.Get("/personalized", required, h.HandlePersonalized)
	products.Get("/view-history", required, h.HandleViewHistory)
	products.Get("/recent", optional, h.HandleRecentViews)
	products.Get("/favorites", optional, h.HandleFavorites)
	products.Post("/:id/favorite", optional, h.HandleToggleFavorite)
	products.Get("/:id", optional, h.HandleDetail)

	search := router.Group("/search", optional)
	search.Get("/history", h.HandleSearchHistory)
	search.Delete("/history", h.HandleDeleteSearchHistory)
}

// HandleLanding serves the anonymous-safe landing bundle: categories,
// popular products and general recommendations.
func (h *ProductHandler) HandleLanding(c *fiber.Ctx) error {
	data, err := h.productService.Landing()
	if err != nil {
		log.Printf("landing data unavailable: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not load landing data",
			"error":   err.Error(),
		})
	}
	return c.JSON(data)
}

// HandleSearch searches products and applies the page's derived view:
// category and age-bracket filters plus a stable sort. A blank query returns
// an empty list without touching the backend.
func (h *ProductHandler) HandleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	user := h.currentUser(c)

	products, err := h.productService.Search(query, user)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Search failed",
			"error":   err.Error(),
		})
	}

	if query != "" {
		if err := h.store.AddSearchQuery(clientOwner(c), query); err != nil {
			log.Printf("failed to record search query: %v", err)
		}
	}

	view := services.FilterAndSort(products, services.FilterOptions{
		Category:   c.Query("category"),
		AgeBracket: c.Query("age"),
		SortBy:     services.SortBy(c.Query("sort")),
	})
	return c.JSON(fiber.Map{
		"query":    query,
		"count":    len(view),
		"products": view,
	})
}

// HandleCategories serves the flat category name list.
func (h *ProductHandler) HandleCategories(c *fiber.Ctx) error {
	categories, err := h.productService.Categories()
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not load categories",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":      len(categories),
		"categories": categories,
	})
}

// HandlePersonalized serves recommendations for the logged-in user.
func (h *ProductHandler) HandlePersonalized(c *fiber.Ctx) error {
	user := h.currentUser(c)
	recs, err := h.productService.Personalized(user)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not load recommendations",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":           len(recs),
		"recommendations": recs,
	})
}

// HandleViewHistory serves the backend-tracked view history for the
// logged-in user.
func (h *ProductHandler) HandleViewHistory(c *fiber.Ctx) error {
	user := h.currentUser(c)
	products := h.productService.RefreshViewHistory(user)
	return c.JSON(fiber.Map{
		"count":    len(products),
		"products": products,
	})
}

// HandleDetail serves a product page. The client-side recently-viewed cache
// is updated for every visitor; backend view tracking only applies to
// logged-in users and happens inside the service.
func (h *ProductHandler) HandleDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}

	user := h.currentUser(c)
	detail, err := h.productService.Detail(id, user)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Product not found",
			"error":   err.Error(),
		})
	}

	if err := h.store.AddRecentView(clientOwner(c), detail.Product); err != nil {
		log.Printf("failed to record recent view: %v", err)
	}

	return c.JSON(fiber.Map{
		"product": detail,
	})
}

// HandleRecentViews serves the client-side recently viewed cache, login or
// not.
func (h *ProductHandler) HandleRecentViews(c *fiber.Ctx) error {
	views, err := h.store.RecentViews(clientOwner(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load recent views",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":    len(views),
		"products": views,
	})
}

// HandleToggleFavorite flips the favorite mark on a product for this client.
func (h *ProductHandler) HandleToggleFavorite(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}
	favorited, err := h.store.ToggleFavorite(clientOwner(c), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update favorites",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"product_id": id,
		"favorited":  favorited,
	})
}

// HandleFavorites lists this client's favorited product ids.
func (h *ProductHandler) HandleFavorites(c *fiber.Ctx) error {
	ids, err := h.store.Favorites(clientOwner(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load favorites",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":     len(ids),
		"favorites": ids,
	})
}

// HandleSearchHistory lists this client's remembered queries, newest first.
func (h *ProductHandler) HandleSearchHistory(c *fiber.Ctx) error {
	queries, err := h.store.SearchHistory(clientOwner(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load search history",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":   len(queries),
		"history": queries,
	})
}

// HandleDeleteSearchHistory removes one remembered query (?q=...) or clears
// the whole history when no query is given.
func (h *ProductHandler) HandleDeleteSearchHistory(c *fiber.Ctx) error {
	owner := clientOwner(c)
	query := c.Query("q")

	var err error
	if query == "" {
		err = h.store.ClearSearchHistory(owner)
	} else {
		err = h.store.RemoveSearchQuery(owner, query)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update search history",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Search history updated",
	})
}

// currentUser rehydrates the user attached by OptionalAuth/AuthRequired, or
// nil for anonymous visitors.
func (h *ProductHandler) currentUser(c *fiber.Ctx) *models.User {
	sessionID, _ := c.Locals("session_id").(string)
	if sessionID == "" {
		return nil
	}
	user, err := h.authService.CurrentUser(sessionID)
	if err != nil {
		return nil
	}
	return user
}
