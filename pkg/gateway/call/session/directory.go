package session

import (
	"context"

	"github.com/google/uuid"
)

// Directory assigns the opaque session handle for a call. Deployments
// can back it with a room directory service; assignment failure never
// fails the call, the caller falls back to a local handle.
type Directory interface {
	Assign(ctx context.Context) (string, error)
}

// LocalDirectory mints handles in process. It is standalone mode and the
// fallback when an external directory is unreachable.
type LocalDirectory struct{}

func (LocalDirectory) Assign(context.Context) (string, error) {
	return "call_" + uuid.NewString(), nil
}
