package session

import (
	"sync"

	"github.com/d60-Lab/friendlyvoice/internal/model"
)

// View names a screen of the client.
type View string

const (
	ViewLogin       View = "login"
	ViewRegister    View = "register"
	ViewVerifyEmail View = "verify-email"
	ViewOnboarding  View = "onboarding"
	ViewProfile     View = "profile"
	ViewFeed        View = "feed"
	ViewMessages    View = "messages"
	ViewEcosystems  View = "ecosystems"
	ViewCreate      View = "create"
	ViewSettings    View = "settings"
)

// Known reports whether v is a view the client can show.
func (v View) Known() bool {
	switch v {
	case ViewLogin, ViewRegister, ViewVerifyEmail, ViewOnboarding, ViewProfile,
		ViewFeed, ViewMessages, ViewEcosystems, ViewCreate, ViewSettings:
		return true
	}
	return false
}

// IsAuthView reports whether v belongs to the sign-in flow.
func (v View) IsAuthView() bool {
	switch v {
	case ViewLogin, ViewRegister, ViewVerifyEmail, ViewOnboarding:
		return true
	}
	return false
}

// Decide returns the view an identity must be sent to from view, and
// whether that is a redirect. A nil identity means signed out.
func Decide(u *model.User, view View) (View, bool) {
	switch {
	case u == nil:
		if !view.IsAuthView() {
			return ViewLogin, true
		}
	case !u.EmailVerified:
		if view != ViewVerifyEmail {
			return ViewVerifyEmail, true
		}
	case !u.OnboardingComplete:
		if view != ViewOnboarding {
			return ViewOnboarding, true
		}
	default:
		if view.IsAuthView() {
			return ViewProfile, true
		}
	}
	return view, false
}

// Navigator records the current view of a session.
type Navigator struct {
	mu      sync.Mutex
	current View
}

func NewNavigator(initial View) *Navigator {
	return &Navigator{current: initial}
}

func (n *Navigator) Current() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Navigate moves to v and reports whether the view changed.
func (n *Navigator) Navigate(v View) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == v {
		return false
	}
	n.current = v
	return true
}
