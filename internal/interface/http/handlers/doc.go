// Package handlers contains reusable HTTP building blocks: health checks
// and middleware.
//
// # Health Checks
//
// A CompositeHealthChecker runs every registered check in parallel with a
// per-check timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewDatabaseCheck(conn))
//	checker.AddCheck("redis", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//
// # Grader authentication
//
// The milestone grading endpoint is reserved for the grading collaborator.
// GraderAuth compares the X-Grader-Key header against a bcrypt hash from
// configuration:
//
//	auth, err := handlers.NewGraderAuth(cfg.HTTP.GraderKeyHash)
//	mux.Handle("POST /api/v1/milestones/{id}/grade", auth.Middleware(grade))
//
// # Middleware
//
// Chain composes middleware so the first one listed runs first:
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
