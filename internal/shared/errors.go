package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrMissingAccount     = fmt.Errorf("account not configured")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrSameCredentials    = fmt.Errorf("source and destination use the same API credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and fetch errors
	ErrAPIRequest  = fmt.Errorf("API request failed")
	ErrFetchFailed = fmt.Errorf("snapshot fetch failed")

	// Data model errors
	ErrUnexpectedKind = fmt.Errorf("unexpected saved item kind")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
