package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"courtbook/internal/config"

	"github.com/gorilla/mux"
)

const (
	apiKeyHeaderDefault     = "x-api-key"
	apiExtraHeaderDefault   = "x-api-extra"
	requesterHeaderDefault  = "x-requester-id"
	privilegedHeaderDefault = "x-requester-privileged"

	permReadAvailability  = "read:availability"
	permReadReservations  = "read:reservations"
	permWriteReservations = "write:reservations"
	permWritePrivileged   = "write:privileged"

	clientKeyUnknown = "unknown"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
)

// Caller is the identity the collaborator passed along with a request.
// Privileged is only set when the API key is allowed to assert it.
type Caller struct {
	Client      string
	RequesterID string
	Privileged  bool
}

type callerKey struct{}

func withCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller attached by HTTPAuth.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// HTTPAuth provides API-key auth, requester identity and per-key rate
// limiting for the /api/v1 routes.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: newRateLimiter(cfg.RateLimit)}
}

// Middleware must be installed on a mux router so the matched route name
// is available for the permission check.
func (a *HTTPAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := Caller{
			RequesterID: strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderRequester, requesterHeaderDefault))),
		}
		wantsPrivilege := parseFlag(r.Header.Get(a.header(a.cfg.Auth.HeaderPrivileged, privilegedHeaderDefault)))

		if a.cfg.Auth.Enabled {
			client, err := a.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !hasPermission(client, requiredPermission(routeName(r)), true) {
				writeError(w, http.StatusForbidden, errPermissionDenied.Error())
				return
			}
			caller.Client = client.Name
			caller.Privileged = wantsPrivilege && hasPermission(client, permWritePrivileged, false)
		} else {
			caller.Privileged = wantsPrivilege
		}

		if !a.limiter.Allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

func (a *HTTPAuth) authenticate(r *http.Request) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)))
	extra := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderExtra, apiExtraHeaderDefault)))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	return client, nil
}

// hasPermission treats an empty permission list as allow-all unless the
// permission must be granted explicitly.
func hasPermission(client config.APIClientKey, required string, emptyAllows bool) bool {
	if required == "" {
		return true
	}
	if len(client.Permissions) == 0 {
		return emptyAllows
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

func requiredPermission(route string) string {
	switch route {
	case routeCalendar, routeAvailability, routeSchedule:
		return permReadAvailability
	case routeListReservations, routeGetReservation:
		return permReadReservations
	case routeCreateReservation, routeCancelReservation, routeConfirmReservation, routeUpdateReservation:
		return permWriteReservations
	default:
		return ""
	}
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

func (a *HTTPAuth) header(configured, fallback string) string {
	if h := strings.TrimSpace(strings.ToLower(configured)); h != "" {
		return h
	}
	return fallback
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault))); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func parseFlag(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}
