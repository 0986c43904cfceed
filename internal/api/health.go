package api

import (
	"context"
	"net/http"
	"time"

	"github.com/stacklok/billing-sync-server/internal/api/common"
	"github.com/stacklok/billing-sync-server/internal/versions"
)

// readinessTimeout bounds a single readiness probe
const readinessTimeout = 5 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(check ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()

			if err := check(ctx); err != nil {
				common.WriteErrorResponse(w, "Not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}

		common.WriteJSONResponse(w, HealthResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
