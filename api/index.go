package api

import (
	"net/http"
	"sync"

	"moviecatalog/internal/app"
	"moviecatalog/internal/httpx"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on the first
// request and reused by warm invocations; expired rows are swept by the
// cron-driven cleanup endpoint instead of the in-process sweeper.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(app.Options{
			LoadDotEnv:    false,
			RunMigrations: app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		})
	})

	if initErr != nil {
		httpx.InternalError(w, "application bootstrap failed")
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
