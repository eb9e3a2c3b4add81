package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
)

type CustomerLookup interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Customer, error)
}

type Authenticator struct {
	customers CustomerLookup
}

func NewAuthenticator(customers CustomerLookup) *Authenticator {
	return &Authenticator{customers: customers}
}

// Authenticate resolves credential to its customer. Malformed credentials are
// rejected before storage is consulted.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*model.Customer, error) {
	if !ValidFormat(credential) {
		return nil, usage.ErrUnauthenticated
	}
	c, err := a.customers.GetByAPIKey(ctx, credential)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, usage.ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup customer by api key: %w", err)
	}
	if c == nil {
		return nil, usage.ErrUnauthenticated
	}
	return c, nil
}
