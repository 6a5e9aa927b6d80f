package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/faulttolerance"
	"flightprice-service/pkg/logger"
)

// GatewayConfig configures the scraper service client
type GatewayConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RatePerSecond      float64
	Burst              int
	RetryAttempts      int
	BreakerMaxFailures int
	BreakerCooldown    time.Duration
}

// ErrMalformedResponse marks a scraper answer whose body could not be decoded
var ErrMalformedResponse = errors.New("malformed scraper response")

// statusError is a non-2xx answer from the scraper service
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("scraper service returned status %d: %s", e.Code, e.Body)
}

// providerClient carries the per-provider protection
type providerClient struct {
	limiter *rate.Limiter
	breaker *faulttolerance.CircuitBreaker
	retryer *faulttolerance.Retryer
}

// HTTPProviderGateway queries providers through the scraper service's unified API
type HTTPProviderGateway struct {
	baseURL  string
	client   *http.Client
	registry *Registry
	clients  map[string]*providerClient
	logger   logger.Logger
	now      func() time.Time
}

// NewHTTPClient returns a client that authenticates with client credentials
// when clientID is set.
func NewHTTPClient(ctx context.Context, clientID, clientSecret, tokenURL string, timeout time.Duration) *http.Client {
	if clientID == "" || tokenURL == "" {
		return &http.Client{Timeout: timeout}
	}
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	client := cc.Client(ctx)
	client.Timeout = timeout
	return client
}

// NewHTTPProviderGateway creates a gateway for every registered provider
func NewHTTPProviderGateway(cfg GatewayConfig, client *http.Client, registry *Registry, log logger.Logger) repository.ProviderGateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	g := &HTTPProviderGateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
		registry: registry,
		clients:  make(map[string]*providerClient),
		logger:   log,
		now:      time.Now,
	}

	for _, name := range registry.Names() {
		retry := faulttolerance.DefaultRetryConfig("provider-" + name)
		retry.MaxAttempts = cfg.RetryAttempts
		retry.Retryable = retryable
		g.clients[name] = &providerClient{
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
			breaker: faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{
				MaxFailures:      cfg.BreakerMaxFailures,
				Timeout:          cfg.BreakerCooldown,
				SuccessThreshold: 1,
				Name:             "provider-" + name,
			}, log),
			retryer: faulttolerance.NewRetryer(retry, log),
		}
	}
	return g
}

// Providers returns the registered provider names
func (g *HTTPProviderGateway) Providers() []string {
	return g.registry.Names()
}

// Query fetches one provider's offers. Offers without price or seats are dropped.
func (g *HTTPProviderGateway) Query(ctx context.Context, provider string, req entity.ProviderRequest) ([]entity.RawOffer, error) {
	pc, ok := g.clients[strings.ToLower(provider)]
	if !ok {
		return nil, &entity.ProviderError{
			Provider: provider,
			Kind:     entity.ProviderErrorProvider,
			Err:      fmt.Errorf("unknown provider %q", provider),
		}
	}

	if err := pc.limiter.Wait(ctx); err != nil {
		return nil, &entity.ProviderError{Provider: provider, Kind: entity.ProviderErrorTimeout, Err: err}
	}

	var flights []UnifiedFlight
	err := pc.retryer.ExecuteWithCircuitBreaker(ctx, pc.breaker, func() error {
		var err error
		flights, err = g.fetch(ctx, provider, req)
		return err
	})
	if err != nil {
		return nil, &entity.ProviderError{Provider: provider, Kind: classify(ctx, err), Err: err}
	}

	receivedAt := g.now().UTC()
	offers := make([]entity.RawOffer, 0, len(flights))
	dropped := 0
	for _, f := range flights {
		offer := f.ToRawOffer(provider, receivedAt)
		if offer.Price <= 0 || offer.Capacity <= 0 {
			dropped++
			continue
		}
		offers = append(offers, offer)
	}

	if dropped > 0 {
		g.logger.Debug("Dropped unsellable offers", "provider", provider, "count", dropped)
	}
	g.logger.Info("Provider returned offers",
		"provider", provider,
		"origin", req.Origin,
		"destination", req.Destination,
		"offers", len(offers))
	return offers, nil
}

func (g *HTTPProviderGateway) fetch(ctx context.Context, provider string, req entity.ProviderRequest) ([]UnifiedFlight, error) {
	jsonData, err := json.Marshal(newUnifiedRequest(provider, req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/unified/%s", g.baseURL, provider)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	return decodeFlights(body)
}

// decodeFlights accepts a bare array or an object with a flights field
func decodeFlights(body []byte) ([]UnifiedFlight, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var flights []UnifiedFlight
		if err := json.Unmarshal(trimmed, &flights); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return flights, nil
	}

	var wrapped struct {
		Flights []UnifiedFlight `json:"flights"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return wrapped.Flights, nil
}

// HealthCheck reports whether the scraper service answers its health check
func (g *HTTPProviderGateway) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("scraper health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{Code: resp.StatusCode}
	}
	return nil
}

// BreakerStats exposes the circuit breaker state of every provider
func (g *HTTPProviderGateway) BreakerStats() map[string]interface{} {
	stats := make(map[string]interface{}, len(g.clients))
	for name, pc := range g.clients {
		stats[name] = pc.breaker.GetStats()
	}
	return stats
}

// retryable skips client errors; the request will not get better
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, faulttolerance.ErrCircuitBreakerOpen)
}

func classify(ctx context.Context, err error) entity.ProviderErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return entity.ProviderErrorTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return entity.ProviderErrorTimeout
	}
	var se *statusError
	if errors.As(err, &se) {
		return entity.ProviderErrorProvider
	}
	if errors.Is(err, ErrMalformedResponse) {
		return entity.ProviderErrorProvider
	}
	return entity.ProviderErrorTransport
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
