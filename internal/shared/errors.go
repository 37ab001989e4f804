package shared

import "errors"

// ErrActorRequired occurs when a mutating call has no acting user.
var ErrActorRequired = errors.New("actor id required")
