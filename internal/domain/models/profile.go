package models

// Quiz holds onboarding questionnaire answers.
type Quiz struct {
	Goal  string   `json:"goal,omitempty"`
	Freq  string   `json:"freq,omitempty"`
	Likes []string `json:"likes,omitempty"`
}

// Profile is the per-user onboarding state and mascot choice.
type Profile struct {
	UserID              int64  `json:"userId"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	Mascot              string `json:"mascot,omitempty"`
	Quiz                *Quiz  `json:"quiz,omitempty"`
}
