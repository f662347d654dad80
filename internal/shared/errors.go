package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest                  = fmt.Errorf("API request failed")
	ErrServiceUnavailable          = fmt.Errorf("service unavailable")
	ErrTrackNotFound               = fmt.Errorf("track not found")
	ErrInvalidRecommendationFormat = fmt.Errorf("invalid recommendation format")

	// Client state errors
	ErrHistoryNotFound   = fmt.Errorf("history entry not found")
	ErrNoGeneration      = fmt.Errorf("no generated playlist")
	ErrTooManySeedTracks = fmt.Errorf("too many seed tracks")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
