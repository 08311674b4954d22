package domain

import "errors"

var (
	// ErrInvalidRole rejects role values outside the closed set. There is
	// no fallback role; a bad value blocks the request.
	ErrInvalidRole = errors.New("invalid_role")
	// ErrOrphanedPrincipal rejects principals whose organization is
	// missing or deleted. All authorization stops at this point.
	ErrOrphanedPrincipal = errors.New("orphaned_principal")
	// ErrUnknownPermission flags a permission outside the catalog. This is
	// a defect in the calling code, not a user-facing denial.
	ErrUnknownPermission = errors.New("unknown_permission")
	// ErrUnknownEntity flags an entity type outside the catalog.
	ErrUnknownEntity = errors.New("unknown_entity")
	// ErrMembershipUnavailable means team membership could not be resolved
	// and the request must fail rather than fall back to a wider filter.
	ErrMembershipUnavailable = errors.New("membership_unavailable")
)
