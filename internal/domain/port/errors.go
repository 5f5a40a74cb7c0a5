package port

import "errors"

// ErrRunNotFound is returned by RunRepository.Get for unknown IDs.
var ErrRunNotFound = errors.New("run not found")
