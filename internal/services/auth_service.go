package services

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"vitamart/internal/models"
	"vitamart/internal/repositories"
	"vitamart/internal/upstream"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrNotLoggedIn is returned by operations that require an authenticated user.
var ErrNotLoggedIn = errors.New("not logged in")

// AuthService is the single source of truth for session state. Authentication
// itself happens on the backend; this service creates and revokes local
// sessions around it and mirrors user/profile state into the local store so a
// restart rehydrates without a network call.
type AuthService struct {
	backend    upstream.API
	store      repositories.LocalStore
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which a session token is valid

	mu      sync.Mutex
	lastErr string
}

// NewAuthService creates a new AuthService.
func NewAuthService(backend upstream.API, store repositories.LocalStore, jwtSecret string) *AuthService {
	return &AuthService{
		backend:    backend,
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// Login authenticates against the backend and, on success, opens a local
// session and persists the user snapshot. The returned token authenticates
// subsequent requests. Failures are recorded and returned to the caller so
// the login step can stay where it is.
func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	user, err := s.backend.Login(email, password)
	if err != nil {
		s.setError(err.Error())
		return nil, "", fmt.Errorf("login failed: %w", err)
	}

	// Backend revisions that omit the profile on login still have it locally
	// from a previous survey; prefer the backend copy when present.
	if user.Profile != nil {
		if err := s.store.SaveProfile(user.Email, user.Profile); err != nil {
			log.Printf("failed to persist profile for %s: %v", user.Email, err)
		}
	} else if local, err := s.store.GetProfile(user.Email); err == nil && local != nil {
		user.Profile = local
	}

	token, session, err := s.issueToken(user)
	if err != nil {
		s.setError(err.Error())
		return nil, "", err
	}
	if err := s.store.SaveSession(session); err != nil {
		s.setError(err.Error())
		return nil, "", fmt.Errorf("failed to persist session: %w", err)
	}

	s.setError("")
	return user, token, nil
}

// Signup registers a new account and immediately logs it in with the same
// credentials. A failure at either step aborts the whole flow.
func (s *AuthService) Signup(email, password, name string) (*models.User, string, error) {
	if _, err := s.backend.Signup(email, password, name); err != nil {
		s.setError(err.Error())
		return nil, "", fmt.Errorf("signup failed: %w", err)
	}
	return s.Login(email, password)
}

// Logout revokes the session and wipes the locally persisted profile and view
// history for its user. The backend's own session model is untouched.
func (s *AuthService) Logout(sessionID string) error {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if err := s.store.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if err := s.store.DeleteProfile(session.Email); err != nil {
		log.Printf("failed to wipe profile for %s: %v", session.Email, err)
	}
	if err := s.store.ClearRecentViews(session.Email); err != nil {
		log.Printf("failed to wipe view history for %s: %v", session.Email, err)
	}
	s.setError("")
	return nil
}

// UpdateProfile posts the survey result to the backend and replaces the
// user's profile with whatever the backend echoes back, mirroring it into the
// local store. Requires a logged-in user.
func (s *AuthService) UpdateProfile(user *models.User, profile models.UserProfile) (*models.UserProfile, error) {
	if user == nil {
		s.setError(ErrNotLoggedIn.Error())
		return nil, ErrNotLoggedIn
	}

	saved, err := s.backend.SaveProfile(user.Email, profile)
	if err != nil {
		s.setError(err.Error())
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	user.Profile = saved
	if err := s.store.SaveProfile(user.Email, saved); err != nil {
		log.Printf("failed to persist profile for %s: %v", user.Email, err)
	}

	s.setError("")
	return saved, nil
}

// CurrentUser rebuilds the user for a session from local persistence alone,
// so a reload does not need a new backend call.
func (s *AuthService) CurrentUser(sessionID string) (*models.User, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, ErrNotLoggedIn
	}
	user := &models.User{
		Email: session.Email,
		Name:  session.Name,
	}
	if profile, err := s.store.GetProfile(session.Email); err == nil {
		user.Profile = profile
	}
	return user, nil
}

// ValidateToken parses and validates a session token. Tokens whose session
// has been revoked by logout are rejected even before they expire.
func (s *AuthService) ValidateToken(tokenString string) (*models.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	sessionID, _ := claims["session_id"].(string)
	if sessionID == "" {
		return nil, fmt.Errorf("invalid token: missing session")
	}

	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session revoked or expired")
	}
	digest := tokenDigest(tokenString)
	if err := bcrypt.CompareHashAndPassword([]byte(session.TokenHash), digest); err != nil {
		return nil, fmt.Errorf("token does not match session")
	}
	return session, nil
}

// LastError returns the most recent auth error message, empty when the last
// operation succeeded.
func (s *AuthService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError resets the recorded error.
func (s *AuthService) ClearError() {
	s.setError("")
}

func (s *AuthService) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *AuthService) issueToken(user *models.User) (string, *models.Session, error) {
	now := time.Now()
	sessionID := uuid.New().String()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": sessionID,
		"email":      user.Email,
		"exp":        now.Add(s.tokenDurat).Unix(),
		"iat":        now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// bcrypt caps input at 72 bytes, so hash a fixed-size digest of the token.
	hash, err := bcrypt.GenerateFromPassword(tokenDigest(tokenString), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash token: %w", err)
	}

	session := &models.Session{
		ID:        sessionID,
		Email:     user.Email,
		Name:      user.Name,
		TokenHash: string(hash),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenDurat),
	}
	return tokenString, session, nil
}

func tokenDigest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
