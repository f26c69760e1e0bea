package controlplane

import "time"

// Config contains configuration for the control plane server
type Config struct {
	Addr      string        // Address to bind the control plane server
	AuthToken string        // Access token for the control plane server
	RateLimit string        // Requests per client, in limiter notation. Empty uses the default
	CacheLife time.Duration // Default max age for purge requests without one
	// Origins allowed to call the control plane from a browser. Empty allows any.
	CORSOrigins []string
}
