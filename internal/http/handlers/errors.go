// Package handlers defines HTTP-layer error codes used across the admin
// operations surface.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes give an
// operator's tooling a stable, machine-readable error taxonomy that
// supplements the human-readable message.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Only codes an admin handler actually returns belong here — the admin
//     surface is small and every error path is enumerable, so there is no
//     reserved taxonomy for hypothetical future endpoints.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "not_found",
//     "message": "route not found"
//   }

package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
)
