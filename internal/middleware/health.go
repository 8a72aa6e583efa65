package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// DatabaseHealthChecker pings the call/knowledge database.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type checkStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler runs the registered checks and reports 503 when any
// dependency is down.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		overall := "healthy"
		checks := make(map[string]checkStatus, len(checkers))
		for name, checker := range checkers {
			if err := checker.Check(ctx); err != nil {
				overall = "unhealthy"
				checks[name] = checkStatus{Status: "unhealthy", Message: err.Error()}
			} else {
				checks[name] = checkStatus{Status: "healthy"}
			}
		}

		statusCode := http.StatusOK
		if overall != "healthy" {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    overall,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
		})
	}
}
