package router

import (
	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/usecase"
	"flightprice-service/pkg/logger"
)

// RequestRouter routes raw search payloads to the extraction strategy for their shape
type RequestRouter struct {
	strategies []usecase.ExtractionStrategy
	logger     logger.Logger
}

// NewRequestRouter creates a new request router
func NewRequestRouter(logger logger.Logger) *RequestRouter {
	return &RequestRouter{
		strategies: make([]usecase.ExtractionStrategy, 0),
		logger:     logger,
	}
}

// NewDefaultRequestRouter registers the standard strategies in priority order
func NewDefaultRequestRouter(logger logger.Logger) *RequestRouter {
	r := NewRequestRouter(logger)
	for _, s := range usecase.DefaultExtractionStrategies() {
		r.Register(s)
	}
	return r
}

// Register appends a strategy; earlier registrations are tried first
func (r *RequestRouter) Register(strategy usecase.ExtractionStrategy) {
	r.strategies = append(r.strategies, strategy)
	r.logger.Info("Registered extraction strategy", "strategy", strategy.Name(), "priority", len(r.strategies))
}

// GetStrategy returns the first strategy that can handle the payload
func (r *RequestRouter) GetStrategy(raw *entity.RawSearchRequest) usecase.ExtractionStrategy {
	for _, strategy := range r.strategies {
		if strategy.CanHandle(raw) {
			return strategy
		}
	}
	return nil
}
