package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the principal lacks the required permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrMissingPrincipal occurs when no principal was resolved for the request.
	ErrMissingPrincipal = errors.New("principal missing from request")
)
