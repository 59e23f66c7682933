package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("your requested Item is not found")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("given Param is not valid")
	// ErrForbidden will throw if the caller does not own the target item
	ErrForbidden = errors.New("you are not allowed to do this")
	// ErrCacheMiss is returned by caches when the key is not present
	ErrCacheMiss = errors.New("cache miss")
	// ErrQueueFull is returned when an async worker can not take more tasks
	ErrQueueFull = errors.New("queue is full")

	// ErrParentNotFound means a reply points at a comment that does not exist.
	// It is a request error, not a server fault.
	ErrParentNotFound = fmt.Errorf("%w: parent comment not found", ErrBadParamInput)
)
