package handlers

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"vitamart/internal/middleware"
	"vitamart/internal/models"
	"vitamart/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication and the auth/survey
// flow. Each client device gets its own flow instance so the step machine
// tracks that client alone.
type AuthHandler struct {
	authService    *services.AuthService
	productService *services.ProductService
	validate       *validator.Validate

	mu    sync.Mutex
	flows map[string]*services.SurveyFlow
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, productService *services.ProductService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		productService: productService,
		validate:       validator.New(),
		flows:          make(map[string]*services.SurveyFlow),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/signup", h.HandleSignup)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/logout", middleware.AuthRequired(h.authService), h.HandleLogout)
	authRoutes.Get("/me", middleware.AuthRequired(h.authService), h.HandleMe)

	flowRoutes := authRoutes.Group("/flow", middleware.OptionalAuth(h.authService))
	flowRoutes.Post("/open", h.HandleFlowOpen)
	flowRoutes.Post("/close", h.HandleFlowClose)
	flowRoutes.Post("/toggle", h.HandleFlowToggle)
	flowRoutes.Post("/login", h.HandleFlowLogin)
	flowRoutes.Post("/signup", h.HandleFlowSignup)
	flowRoutes.Post("/survey", h.HandleFlowSurvey)

	router.Post("/user/profile", middleware.AuthRequired(h.authService), h.HandleSaveProfile)
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileRequest represents the survey submission body.
type ProfileRequest struct {
	Age            int     `json:"age" validate:"omitempty,gte=0,lte=130"`
	Weight         float64 `json:"weight" validate:"omitempty,gt=0"`
	HealthConcerns string  `json:"health_concerns" validate:"required"`
	Diseases       string  `json:"diseases"`
}

// HandleSignup registers a new account and logs it straight in.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if ok, resp := h.parseAndValidate(c, &req); !ok {
		return resp
	}

	user, token, err := h.authService.Signup(req.Email, req.Password, req.Name)
	if err != nil {
		log.Printf("signup failed for %s: %v", req.Email, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Signup failed",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created",
		"user":    user,
		"token":   token,
	})
}

// HandleLogin authenticates against the backend and issues a session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, resp := h.parseAndValidate(c, &req); !ok {
		return resp
	}

	user, token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		log.Printf("login failed for %s: %v", req.Email, err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// HandleLogout revokes the session and wipes the local profile and view
// history copies.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sessionID, _ := c.Locals("session_id").(string)
	if err := h.authService.Logout(sessionID); err != nil {
		log.Printf("logout failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Logout failed",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}

// HandleMe rehydrates the current user from local persistence.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	sessionID, _ := c.Locals("session_id").(string)
	user, err := h.authService.CurrentUser(sessionID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Not logged in",
		})
	}
	return c.JSON(fiber.Map{
		"user":            user,
		"survey_required": !user.HasProfile(),
	})
}

// HandleSaveProfile submits the health survey outside of the guided flow.
func (h *AuthHandler) HandleSaveProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if ok, resp := h.parseAndValidate(c, &req); !ok {
		return resp
	}

	sessionID, _ := c.Locals("session_id").(string)
	user, err := h.authService.CurrentUser(sessionID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Not logged in",
		})
	}

	saved, err := h.authService.UpdateProfile(user, models.UserProfile{
		Age:            req.Age,
		Weight:         req.Weight,
		HealthConcerns: req.HealthConcerns,
		Diseases:       req.Diseases,
	})
	if err != nil {
		log.Printf("profile save failed for %s: %v", user.Email, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not save profile",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Profile saved",
		"profile": saved,
	})
}

// HandleFlowOpen opens the auth/survey flow for this client. A logged-in
// user without a profile lands directly in the forced survey step.
func (h *AuthHandler) HandleFlowOpen(c *fiber.Ctx) error {
	flow := h.flowFor(c)
	user, token := h.sessionUser(c)
	flow.Open(user, token)
	return c.JSON(h.flowState(flow))
}

// HandleFlowClose dismisses the flow unless the survey is forced.
func (h *AuthHandler) HandleFlowClose(c *fiber.Ctx) error {
	flow := h.flowFor(c)
	if err := flow.Close(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": err.Error(),
			"flow":    h.flowState(flow),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Closed",
		"flow":    h.flowState(flow),
	})
}

// HandleFlowToggle switches between the login and signup steps.
func (h *AuthHandler) HandleFlowToggle(c *fiber.Ctx) error {
	flow := h.flowFor(c)
	if err := flow.ToggleMode(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": err.Error(),
			"flow":    h.flowState(flow),
		})
	}
	return c.JSON(fiber.Map{
		"flow": h.flowState(flow),
	})
}

// HandleFlowLogin submits the login step of the flow.
func (h *AuthHandler) HandleFlowLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, resp := h.parseAndValidate(c, &req); !ok {
		return resp
	}

	flow := h.flowFor(c)
	user, token, err := flow.SubmitLogin(req.Email, req.Password)
	if err != nil {
		return h.flowError(c, flow, err)
	}
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    user,
		"token":   token,
		"flow":    h.flowState(flow),
	})
}

// HandleFlowSignup submits the signup step; success always lands in the
// forced survey.
func (h *AuthHandler) HandleFlowSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if ok, resp := h.parseAndValidate(c, &req); !ok {
		return resp
	}

	flow := h.flowFor(c)
	user, token, err := flow.SubmitSignup(req.Email, req.Password, req.Name)
	if err != nil {
		return h.flowError(c, flow, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created",
		"user":    user,
		"token":   token,
		"flow":    h.flowState(flow),
	})
}

// HandleFlowSurvey submits the survey step and completes the flow.
func (h *AuthHandler) HandleFlowSurvey(c *fiber.Ctx) error {
	var req ProfileRequest
	if ok, resp := h.parseAndValidate(c, &req); !ok {
		return resp
	}

	flow := h.flowFor(c)
	saved, err := flow.SubmitSurvey(models.UserProfile{
		Age:            req.Age,
		Weight:         req.Weight,
		HealthConcerns: req.HealthConcerns,
		Diseases:       req.Diseases,
	})
	if err != nil {
		return h.flowError(c, flow, err)
	}
	return c.JSON(fiber.Map{
		"message": "Profile saved",
		"profile": saved,
		"flow":    h.flowState(flow),
	})
}

// flowFor returns the flow instance for this client device, creating it on
// first use.
func (h *AuthHandler) flowFor(c *fiber.Ctx) *services.SurveyFlow {
	owner := clientOwner(c)
	h.mu.Lock()
	defer h.mu.Unlock()
	flow, ok := h.flows[owner]
	if !ok {
		flow = services.NewSurveyFlow(h.authService, h.productService)
		h.flows[owner] = flow
	}
	return flow
}

// sessionUser resolves the logged-in user for flow opening, or nil for
// anonymous clients.
func (h *AuthHandler) sessionUser(c *fiber.Ctx) (*models.User, string) {
	sessionID, _ := c.Locals("session_id").(string)
	if sessionID == "" {
		return nil, ""
	}
	user, err := h.authService.CurrentUser(sessionID)
	if err != nil {
		return nil, ""
	}
	token, _ := bearerOf(c)
	return user, token
}

func (h *AuthHandler) flowState(flow *services.SurveyFlow) fiber.Map {
	return fiber.Map{
		"open":   flow.IsOpen(),
		"step":   flow.Step(),
		"forced": flow.IsForced(),
		"phase":  flow.Phase(),
	}
}

func (h *AuthHandler) flowError(c *fiber.Ctx, flow *services.SurveyFlow, err error) error {
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, services.ErrSubmitInFlight):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, services.ErrFlowClosed), errors.Is(err, services.ErrSurveyRequired):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrNotLoggedIn):
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{
		"message": err.Error(),
		"flow":    h.flowState(flow),
	})
}

// parseAndValidate decodes the body into req and validates it, writing the
// error response itself when something is off.
func (h *AuthHandler) parseAndValidate(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		log.Printf("error parsing request body: %v", err)
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return true, nil
}
