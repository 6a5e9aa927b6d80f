package repository

import (
	"context"

	"flightprice-service/internal/domain/entity"
)

// ProviderGateway queries external flight providers. Query failures are
// returned as *entity.ProviderError.
type ProviderGateway interface {
	Providers() []string
	Query(ctx context.Context, provider string, req entity.ProviderRequest) ([]entity.RawOffer, error)
}
