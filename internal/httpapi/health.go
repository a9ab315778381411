package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/supervisor"
)

func healthHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// readyHandler reports ready only when no critical target's circuit is open
// (spec §6: "readiness requires all critical targets not open").
func readyHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, st := range a.Supervisor.Snapshot() {
			if st.State == supervisor.StateOpen {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "target": st.Kind + ":" + st.Name})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// systemStatusHandler surfaces circuit states plus per-adapter retriever
// health (spec §6 GET /admin/system-status).
func systemStatusHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		adapters := lo.Map(a.Adapters(), func(ad domain.Adapter, _ int) gin.H {
			entry := gin.H{"name": ad.Name, "kind": ad.Kind}

			if ad.Kind == domain.AdapterKindRetriever {
				entry["retriever_health"] = adapterRetrieverHealth(ctx, a, ad)
			}

			return entry
		})

		c.JSON(http.StatusOK, gin.H{
			"circuits": a.Supervisor.Snapshot(),
			"adapters": adapters,
		})
	}
}

func adapterRetrieverHealth(ctx context.Context, a *app.App, ad domain.Adapter) string {
	ret, err := a.Retrievers.Get(ctx, ad)
	if err != nil {
		return "down"
	}

	return string(ret.HealthCheck(ctx))
}
