package gateway_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pharmachain/pharmachain-backend/internal/gateway"
	"github.com/pharmachain/pharmachain-backend/pkg/config"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func newTestRouter() chi.Router {
	cfg := &config.Config{
		Services: config.ServicesConfig{
			PartyServiceURL:  "http://localhost:8081",
			LedgerServiceURL: "http://localhost:8082",
		},
	}
	log := logger.New("api-gateway-test", "test")

	r := chi.NewRouter()
	r.Route("/api/v1", gateway.APIRoutes(gateway.NewProxy(cfg, log)))
	return r
}

// Every operation the backend services expose must be reachable through the
// gateway route table.
func TestAPIRoutes_ForwardsAllOperations(t *testing.T) {
	r := newTestRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/auth/register"},
		{http.MethodPost, "/api/v1/auth/login"},
		{http.MethodPost, "/api/v1/auth/refresh"},
		{http.MethodGet, "/api/v1/parties"},
		{http.MethodPut, "/api/v1/parties/me"},
		{http.MethodPost, "/api/v1/parties/abc/deactivate"},
		{http.MethodPost, "/api/v1/parties/abc/reactivate"},
		{http.MethodGet, "/api/v1/ledger/items"},
		{http.MethodPost, "/api/v1/ledger/items"},
		{http.MethodGet, "/api/v1/ledger/items/expiring"},
		{http.MethodGet, "/api/v1/ledger/items/abc"},
		{http.MethodPatch, "/api/v1/ledger/items/abc/price"},
		{http.MethodGet, "/api/v1/ledger/holdings"},
		{http.MethodGet, "/api/v1/ledger/holdings/history"},
		{http.MethodPost, "/api/v1/ledger/holdings/rebuild"},
		{http.MethodGet, "/api/v1/ledger/holdings/abc"},
		{http.MethodGet, "/api/v1/ledger/transfers"},
		{http.MethodPost, "/api/v1/ledger/transfers"},
		{http.MethodPost, "/api/v1/ledger/transfers/fifo"},
		{http.MethodPost, "/api/v1/ledger/transfers/commit-lots"},
		{http.MethodGet, "/api/v1/ledger/transfers/abc"},
		{http.MethodPost, "/api/v1/ledger/transfers/abc/commit"},
		{http.MethodPost, "/api/v1/ledger/transfers/abc/reject"},
		{http.MethodGet, "/api/v1/ledger/requests"},
		{http.MethodPost, "/api/v1/ledger/requests"},
		{http.MethodGet, "/api/v1/ledger/requests/abc"},
		{http.MethodPost, "/api/v1/ledger/requests/abc/decide"},
	}

	for _, route := range routes {
		rctx := chi.NewRouteContext()
		assert.True(t, r.Match(rctx, route.method, route.path),
			"no route for %s %s", route.method, route.path)
	}
}

func TestAPIRoutes_UnknownPathDoesNotMatch(t *testing.T) {
	r := newTestRouter()

	rctx := chi.NewRouteContext()
	assert.False(t, r.Match(rctx, http.MethodDelete, "/api/v1/ledger/items/abc"))
}
