package featureflags

import "context"

// Repository persists flag values. GetFlag returns ErrFlagNotFound for keys
// it has never stored.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlags upserts all flags or none.
	SetFlags(ctx context.Context, flags []*Flag) error
}
