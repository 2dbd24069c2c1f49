package models

import "time"

// Story is a single story returned by the remote Story API.
type Story struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl"`
	Lat         float64   `json:"lat,omitempty"`
	Lon         float64   `json:"lon,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// APIResponse is the envelope common to every Story API response.
type APIResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// StoryListResponse is the response to GET /stories.
type StoryListResponse struct {
	APIResponse
	ListStory []Story `json:"listStory"`
}

// StoryResponse is the response to GET /stories/:id.
type StoryResponse struct {
	APIResponse
	Story Story `json:"story"`
}

// LoginResult holds the authenticated session returned by POST /login.
type LoginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// LoginResponse is the response to POST /login.
type LoginResponse struct {
	APIResponse
	LoginResult LoginResult `json:"loginResult"`
}
