// Package auth holds the narrow contracts the upload pipeline consumes
// for authorization and anti-forgery checks. Session handling proper
// lives outside this service; handlers only see these interfaces.
package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized  = errors.New("not authenticated")
	ErrForbidden     = errors.New("not authorized")
	ErrTokenMismatch = errors.New("invalid anti-forgery token")
)

// Principal is the acting identity after authorization.
type Principal struct {
	ID    string
	Admin bool
}

// Authorizer yields allow/deny for a request's bearer credential.
type Authorizer interface {
	Authorize(ctx context.Context, bearer string) (Principal, error)
}

// TokenValidator issues session-bound anti-forgery tokens and compares
// a request-supplied token against the session's current one.
type TokenValidator interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Validate(ctx context.Context, sessionID, token string) error
}
