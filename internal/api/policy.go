package api

// RoutePolicy classifies request paths for the Gate middleware. It is built
// once at startup and never mutated afterwards.
type RoutePolicy struct {
	// APIKeyRoutes maps a path to the route id the permission evaluator
	// understands.
	APIKeyRoutes map[string]string
	PublicPaths  map[string]bool
	TokenPaths   map[string]bool
	// FailOpen forwards requests that match no class instead of denying them.
	FailOpen bool
}

func DefaultPolicy(failOpen bool) RoutePolicy {
	return RoutePolicy{
		APIKeyRoutes: map[string]string{
			"/api/blacklist/check-api":  "check-api",
			"/api/blacklist/get-api":    "get-api",
			"/api/blacklist/add-api":    "add-api",
			"/api/blacklist/remove-api": "remove-api",
		},
		PublicPaths: map[string]bool{
			"/api/auth/login":  true,
			"/api/auth/verify": true,
			"/health":          true,
			"/ready":           true,
			"/metrics":         true,
		},
		TokenPaths: map[string]bool{
			"/api/apikey/create":    true,
			"/api/apikey/list":      true,
			"/api/apikey/update":    true,
			"/api/apikey/delete":    true,
			"/api/blacklist/add":    true,
			"/api/blacklist/remove": true,
			"/api/blacklist/get":    true,
			"/api/logs/list":        true,
			"/api/logs/advanced":    true,
			"/api/logs/cleanup":     true,
		},
		FailOpen: failOpen,
	}
}
