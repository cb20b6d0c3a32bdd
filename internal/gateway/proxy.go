package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pharmachain/pharmachain-backend/pkg/config"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	pkghttp "github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// Proxy handles reverse proxying to backend services
type Proxy struct {
	cfg         *config.Config
	log         *logger.Logger
	partyProxy  *httputil.ReverseProxy
	ledgerProxy *httputil.ReverseProxy
}

// NewProxy creates a new proxy instance
func NewProxy(cfg *config.Config, log *logger.Logger) *Proxy {
	p := &Proxy{
		cfg: cfg,
		log: log,
	}

	p.partyProxy = p.createProxy(cfg.Services.PartyServiceURL)
	p.ledgerProxy = p.createProxy(cfg.Services.LedgerServiceURL)

	return p
}

func (p *Proxy) createProxy(targetURL string) *httputil.ReverseProxy {
	target, _ := url.Parse(targetURL)

	proxy := httputil.NewSingleHostReverseProxy(target)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		pkghttp.Error(w, errors.Internal("service unavailable"))
	}

	return proxy
}

// ForwardToParties forwards requests to the party service
func (p *Proxy) ForwardToParties(w http.ResponseWriter, r *http.Request) {
	p.partyProxy.ServeHTTP(w, r)
}

// ForwardToLedger forwards requests to the ledger service
func (p *Proxy) ForwardToLedger(w http.ResponseWriter, r *http.Request) {
	p.ledgerProxy.ServeHTTP(w, r)
}

// AuthMiddleware validates JWT tokens and stamps the party identity onto
// the request for downstream services.
func (p *Proxy) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkghttp.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			pkghttp.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(p.cfg.JWT.Secret), nil
		})
		if err != nil {
			p.log.Debug().Err(err).Msg("token validation failed")
			if strings.Contains(err.Error(), "expired") {
				pkghttp.Error(w, errors.TokenExpired())
			} else {
				pkghttp.Error(w, errors.TokenInvalid())
			}
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			pkghttp.Error(w, errors.TokenInvalid())
			return
		}

		partyID, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)

		ctx := pkghttp.WithPartyContext(r.Context(), partyID, email, role)

		// Identity travels as headers; downstream services trust the gateway.
		r.Header.Set("X-Party-ID", partyID)
		r.Header.Set("X-Party-Email", email)
		r.Header.Set("X-Party-Role", role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
