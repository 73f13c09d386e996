package http

import (
	"net/http"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/httpx"
)

// ReadyzHandler reports whether the service can actually serve logins:
// the database must answer and the throttle backend must be reachable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	tl throttle.Throttle,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{
			Database: "ok",
			Throttle: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// A lookup on a key nobody logs in with doubles as a liveness
		// probe for the throttle backend.
		if _, err := tl.IsLocked(r.Context(), "readyz|probe"); err != nil {
			checks.Throttle = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
