package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/sellora/pkg/db/pagination"
)

type CreateContactRequest struct {
	Name  string
	Email string
}

type UpdateContactRequest struct {
	ID    string
	Name  *string
	Email *string
}

type GetContactRequest struct {
	ID string
}

type ListContactRequest struct {
	pagination.Pagination
	Name string
}

type ListContactResponse struct {
	pagination.PageInfo
	Contacts []Contact `json:"contacts"`
}

// Service is the contact surface. Every call derives its reach from the
// request's tenant context: reads go through the scope filter, writes through
// the gate against the loaded row's attribution.
type Service interface {
	Create(context.Context, CreateContactRequest) (Contact, error)
	List(context.Context, ListContactRequest) (ListContactResponse, error)
	GetByID(context.Context, GetContactRequest) (Contact, error)
	Update(context.Context, UpdateContactRequest) (Contact, error)
	Delete(context.Context, GetContactRequest) error
}

var (
	ErrNoTenantContext  = errors.New("no_tenant_context")
	ErrNoOrganization   = errors.New("no_organization")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
)
