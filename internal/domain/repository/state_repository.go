package repository

import "context"

// Keys of the persisted local state.
const (
	KeyLastReadTimestamp = "lastReadTimestamp"
	KeyUserToken         = "userToken"
	KeyUserID            = "userId"
)

// StateRepository persists small string values across restarts. Get
// reports found=false for a missing key rather than an error.
type StateRepository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StateResetter is implemented by backends that can drop every key of the
// device at once. Used on logout so the next user starts from scratch.
type StateResetter interface {
	Reset(ctx context.Context) error
}
