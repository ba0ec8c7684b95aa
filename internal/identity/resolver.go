package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken means the credential does not resolve to a user. Any
// other error from a Resolver is a dependency failure.
var ErrInvalidToken = errors.New("identity: invalid token")

// Resolver turns an opaque session credential into a user id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}
