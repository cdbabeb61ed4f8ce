package source

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"

	"github.com/matzehuels/famtree/pkg/buildinfo"
	"github.com/matzehuels/famtree/pkg/cache"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/httputil"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/payload"
)

// Service endpoints, relative to the base URL.
const (
	EndpointNeighborhood   = "/graph/neighborhood"
	EndpointFamilyParents  = "/graph/family/parents"
	EndpointFamilyChildren = "/graph/family/children"
)

const defaultTimeout = 30 * time.Second

// HTTP is the family tree service client. Transient failures are retried
// with backoff and a circuit breaker stops calls while the service keeps
// failing. Responses are cached per token scope.
type HTTP struct {
	base    string
	token   string
	client  *http.Client
	policy  httputil.Policy
	breaker *gobreaker.CircuitBreaker
	cache   cache.Cache
	keyer   cache.Keyer
	logger  *log.Logger
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithToken sends a bearer token with every request.
func WithToken(token string) HTTPOption { return func(h *HTTP) { h.token = token } }

// WithClient replaces the default http.Client.
func WithClient(c *http.Client) HTTPOption { return func(h *HTTP) { h.client = c } }

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.client = &http.Client{Timeout: d} }
}

// WithRetry sets the retry policy.
func WithRetry(p httputil.Policy) HTTPOption { return func(h *HTTP) { h.policy = p } }

// WithCache caches responses for cache.PayloadTTL.
func WithCache(c cache.Cache) HTTPOption { return func(h *HTTP) { h.cache = c } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) HTTPOption { return func(h *HTTP) { h.logger = l } }

// NewHTTP returns a client for the service at base, e.g.
// "https://tree.example.org/api".
func NewHTTP(base string, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "invalid service URL %q", base)
	}
	h := &HTTP{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: defaultTimeout},
		policy: httputil.DefaultPolicy,
		cache:  cache.NewNullCache(),
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), cache.ScopeFor(h.token))
	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "famtree-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !httputil.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return h, nil
}

// Neighborhood implements Source.
func (h *HTTP) Neighborhood(ctx context.Context, id string, depth, maxNodes int) (payload.Payload, error) {
	if err := errors.ValidateID("person", id); err != nil {
		return payload.Payload{}, err
	}
	return h.get(ctx, EndpointNeighborhood, map[string]string{
		"id":        id,
		"depth":     strconv.Itoa(ClampDepth(depth)),
		"max_nodes": strconv.Itoa(ClampMaxNodes(maxNodes)),
		"layout":    "family",
	})
}

// FamilyParents implements Source.
func (h *HTTP) FamilyParents(ctx context.Context, familyID, childID string) (payload.Payload, error) {
	if err := errors.ValidateID("family", familyID); err != nil {
		return payload.Payload{}, err
	}
	q := map[string]string{"family_id": familyID}
	if childID != "" {
		q["child_id"] = childID
	}
	return h.get(ctx, EndpointFamilyParents, q)
}

// FamilyChildren implements Source.
func (h *HTTP) FamilyChildren(ctx context.Context, familyID string, includeSpouses bool) (payload.Payload, error) {
	if err := errors.ValidateID("family", familyID); err != nil {
		return payload.Payload{}, err
	}
	return h.get(ctx, EndpointFamilyChildren, map[string]string{
		"family_id":       familyID,
		"include_spouses": strconv.FormatBool(includeSpouses),
	})
}

func (h *HTTP) get(ctx context.Context, endpoint string, q map[string]string) (payload.Payload, error) {
	key := h.keyer.PayloadKey(endpoint, q)
	if data, ok, err := h.cache.Get(ctx, key); err == nil && ok {
		if p, err := payload.Decode(data); err == nil {
			observability.Cache().OnCacheHit(ctx, "payload")
			return p, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "payload")

	var data []byte
	err := h.policy.Do(ctx, func() error {
		out, err := h.breaker.Execute(func() (any, error) {
			return h.fetch(ctx, endpoint, q)
		})
		if err != nil {
			return err
		}
		data = out.([]byte)
		return nil
	})
	if err != nil {
		return payload.Payload{}, classify(ctx, endpoint, err)
	}

	p, err := payload.Decode(data)
	if err != nil {
		return payload.Payload{}, errors.Wrap(errors.ErrCodeInvalidPayload, err, "decode %s response", endpoint)
	}
	if err := h.cache.Set(ctx, key, data, cache.PayloadTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "payload", len(data))
	}
	h.logger.Debug("fetched payload", "endpoint", endpoint, "nodes", len(p.Nodes), "edges", len(p.Edges))
	return p, nil
}

func (h *HTTP) fetch(ctx context.Context, endpoint string, q map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range q {
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, endpoint)
	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, endpoint, err)
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &httputil.RetryableError{Err: err}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, endpoint, resp.StatusCode, time.Since(start))

	if err := httputil.CheckResponse(resp); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, &httputil.RetryableError{Err: err}
	}
	return buf.Bytes(), nil
}

func classify(ctx context.Context, endpoint string, err error) error {
	var se *httputil.StatusError
	switch {
	case ctx.Err() != nil:
		return errors.Wrap(errors.ErrCodeTimeout, err, "request to %s timed out", endpoint)
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.Wrap(errors.ErrCodeUnavailable, err, "the family tree service is temporarily unavailable")
	case stderrors.As(err, &se) && se.Code == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeNotFound, err, "%s: record not found", endpoint)
	case stderrors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s: request rejected with status %d", endpoint, se.Code)
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "could not reach the family tree service (%s)", endpoint)
	}
}
