package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/d60-Lab/friendlyvoice/internal/model"
)

func TestDecide(t *testing.T) {
	unverified := &model.User{ID: "u"}
	verified := &model.User{ID: "u", EmailVerified: true}
	onboarded := &model.User{ID: "u", EmailVerified: true, OnboardingComplete: true}

	tests := []struct {
		name     string
		user     *model.User
		view     View
		want     View
		redirect bool
	}{
		{"signed out on feed", nil, ViewFeed, ViewLogin, true},
		{"signed out on register", nil, ViewRegister, ViewRegister, false},
		{"signed out on onboarding", nil, ViewOnboarding, ViewOnboarding, false},
		{"unverified on profile", unverified, ViewProfile, ViewVerifyEmail, true},
		{"unverified on onboarding", unverified, ViewOnboarding, ViewVerifyEmail, true},
		{"unverified on verify", unverified, ViewVerifyEmail, ViewVerifyEmail, false},
		{"verified not onboarded", verified, ViewFeed, ViewOnboarding, true},
		{"verified on verify page", verified, ViewVerifyEmail, ViewOnboarding, true},
		{"verified on onboarding", verified, ViewOnboarding, ViewOnboarding, false},
		{"complete on login", onboarded, ViewLogin, ViewProfile, true},
		{"complete on onboarding", onboarded, ViewOnboarding, ViewProfile, true},
		{"complete on settings", onboarded, ViewSettings, ViewSettings, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, redirect := Decide(tt.user, tt.view)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.redirect, redirect)

			// applying the decision makes it stable
			again, redirectAgain := Decide(tt.user, got)
			assert.Equal(t, got, again)
			assert.False(t, redirectAgain)
		})
	}
}

func TestNavigator(t *testing.T) {
	n := NewNavigator(ViewLogin)
	assert.False(t, n.Navigate(ViewLogin))
	assert.True(t, n.Navigate(ViewFeed))
	assert.Equal(t, ViewFeed, n.Current())
}

func TestView(t *testing.T) {
	assert.True(t, ViewEcosystems.Known())
	assert.False(t, View("admin").Known())
	assert.True(t, ViewVerifyEmail.IsAuthView())
	assert.False(t, ViewProfile.IsAuthView())
}
