package auth

import (
	"context"
	"crypto/subtle"
)

// APIKeyAuthorizer authorizes the single configured admin key. It is
// the deployment's stand-in for the external identity provider; the
// rest of the service only depends on the Authorizer contract.
type APIKeyAuthorizer struct {
	adminKey string
}

func NewAPIKeyAuthorizer(adminKey string) *APIKeyAuthorizer {
	return &APIKeyAuthorizer{adminKey: adminKey}
}

func (a *APIKeyAuthorizer) Authorize(_ context.Context, bearer string) (Principal, error) {
	if bearer == "" {
		return Principal{}, ErrUnauthorized
	}
	if a.adminKey == "" {
		return Principal{}, ErrForbidden
	}
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(a.adminKey)) != 1 {
		return Principal{}, ErrForbidden
	}
	return Principal{ID: "admin", Admin: true}, nil
}
