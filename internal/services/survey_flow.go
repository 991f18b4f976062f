package services

import (
	"errors"
	"log"
	"sync"

	"vitamart/internal/models"
)

// FlowStep is the visible step of the auth/survey flow.
type FlowStep string

const (
	StepLogin  FlowStep = "login"
	StepSignup FlowStep = "signup"
	StepSurvey FlowStep = "survey"
)

// AccountPhase is the real account state the flow used to reconstruct from a
// pile of booleans: anonymous, logged in without a profile, or complete.
type AccountPhase string

const (
	PhaseAnonymous  AccountPhase = "anonymous"
	PhaseIncomplete AccountPhase = "authenticated-incomplete"
	PhaseComplete   AccountPhase = "authenticated-complete"
)

var (
	// ErrSurveyRequired rejects attempts to dismiss the forced survey.
	ErrSurveyRequired = errors.New("please complete your health survey to continue")
	// ErrSubmitInFlight guards against overlapping submissions.
	ErrSubmitInFlight = errors.New("a submission is already in progress")
	// ErrFlowClosed is returned when submitting against a closed flow.
	ErrFlowClosed = errors.New("the auth flow is not open")
)

// SurveyFlow drives the login/signup/survey sequence with explicit guarded
// transitions. A user who is logged in but has no profile is forced into the
// survey step and cannot leave it until submission succeeds.
type SurveyFlow struct {
	auth     *AuthService
	products *ProductService // optional, refetched after survey completion

	mu         sync.Mutex
	step       FlowStep
	open       bool
	forced     bool
	submitting bool
	user       *models.User
	token      string
}

// NewSurveyFlow creates a new SurveyFlow. products may be nil; when present,
// personalized recommendations are refreshed after a completed survey instead
// of forcing the client to reload everything.
func NewSurveyFlow(auth *AuthService, products *ProductService) *SurveyFlow {
	return &SurveyFlow{
		auth:     auth,
		products: products,
		step:     StepLogin,
	}
}

// Open shows the flow. A known user with an incomplete profile lands directly
// in the forced survey step; everyone else starts at login.
func (f *SurveyFlow) Open(user *models.User, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.open = true
	f.user = user
	f.token = token
	if user != nil && !user.HasProfile() {
		f.step = StepSurvey
		f.forced = true
	} else {
		f.step = StepLogin
		f.forced = false
	}
}

// Close dismisses the flow. While the survey is forced, closing is rejected
// with a warning the caller should surface.
func (f *SurveyFlow) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forced {
		return ErrSurveyRequired
	}
	f.reset()
	return nil
}

// ToggleMode switches between login and signup. Not available while the
// survey is forced or already showing.
func (f *SurveyFlow) ToggleMode() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return ErrFlowClosed
	}
	if f.forced || f.step == StepSurvey {
		return ErrSurveyRequired
	}
	if f.step == StepLogin {
		f.step = StepSignup
	} else {
		f.step = StepLogin
	}
	return nil
}

// SubmitLogin runs the login step. On success the flow either closes (profile
// present) or advances to the forced survey (profile absent). On failure the
// step is unchanged so the client can retry in place.
func (f *SurveyFlow) SubmitLogin(email, password string) (*models.User, string, error) {
	if err := f.beginSubmit(StepLogin); err != nil {
		return nil, "", err
	}
	user, token, err := f.auth.Login(email, password)
	f.endSubmit()
	if err != nil {
		return nil, "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = user
	f.token = token
	if user.HasProfile() {
		f.reset()
	} else {
		f.step = StepSurvey
		f.forced = true
	}
	return user, token, nil
}

// SubmitSignup runs the signup step, which auto-logins and always lands in
// the forced survey since a fresh account never has a profile.
func (f *SurveyFlow) SubmitSignup(email, password, name string) (*models.User, string, error) {
	if err := f.beginSubmit(StepSignup); err != nil {
		return nil, "", err
	}
	user, token, err := f.auth.Signup(email, password, name)
	f.endSubmit()
	if err != nil {
		return nil, "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = user
	f.token = token
	f.step = StepSurvey
	f.forced = true
	return user, token, nil
}

// SubmitSurvey runs the survey step. On success the profile is saved, the
// flow closes and resets to login for the next open, and personalized
// recommendations are refetched in place.
func (f *SurveyFlow) SubmitSurvey(profile models.UserProfile) (*models.UserProfile, error) {
	if err := f.beginSubmit(StepSurvey); err != nil {
		return nil, err
	}
	f.mu.Lock()
	user := f.user
	f.mu.Unlock()

	saved, err := f.auth.UpdateProfile(user, profile)
	f.endSubmit()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.forced = false
	f.reset()
	f.mu.Unlock()

	if f.products != nil && user != nil {
		if _, err := f.products.Personalized(user); err != nil {
			log.Printf("failed to refresh recommendations after survey: %v", err)
		}
	}
	return saved, nil
}

// Step returns the currently visible step.
func (f *SurveyFlow) Step() FlowStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Phase reports the real account state behind the flow.
func (f *SurveyFlow) Phase() AccountPhase {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.user == nil:
		return PhaseAnonymous
	case !f.user.HasProfile():
		return PhaseIncomplete
	default:
		return PhaseComplete
	}
}

// IsOpen reports whether the flow is showing.
func (f *SurveyFlow) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// IsForced reports whether the survey step cannot be dismissed.
func (f *SurveyFlow) IsForced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forced
}

// beginSubmit checks the flow is open at the expected step and takes the
// single submission slot.
func (f *SurveyFlow) beginSubmit(step FlowStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrFlowClosed
	}
	if f.step != step {
		return errors.New("submission does not match the current step")
	}
	if f.submitting {
		return ErrSubmitInFlight
	}
	f.submitting = true
	return nil
}

func (f *SurveyFlow) endSubmit() {
	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
}

// reset closes the flow and returns the visible step to login for the next
// open. Caller must hold the lock.
func (f *SurveyFlow) reset() {
	f.open = false
	f.step = StepLogin
	f.submitting = false
}
