// Package handlers contains reusable pieces of the HTTP interface: health
// checks, admin key authentication and middleware.
//
// # Health Checks
//
// Checks run in parallel, each under its own timeout. Optional checks are
// reported but never fail the health endpoint:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
// # Admin Keys
//
// Staff endpoints accept a key in X-Admin-Key or as a Bearer token. Only
// bcrypt hashes of the keys are configured:
//
//	hash, _ := handlers.HashAdminKey("s3cret")
//	auth := handlers.NewAdminKeyAuth("", []string{hash})
//	protected := auth.Middleware(deny)(adminHandler)
package handlers
