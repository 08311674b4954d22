package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/sellora/pkg/db/pagination"
)

type CreateDealRequest struct {
	ContactID string
	Title     string
	Amount    int64
	Currency  string
}

type UpdateDealRequest struct {
	ID     string
	Title  *string
	Stage  *string
	Amount *int64
}

type GetDealRequest struct {
	ID string
}

// ReassignDealRequest moves a deal under a new owner. OwnerID is the target
// user.
type ReassignDealRequest struct {
	ID      string
	OwnerID string
}

type ListDealRequest struct {
	pagination.Pagination
	Stage string
}

type ListDealResponse struct {
	pagination.PageInfo
	Deals []Deal `json:"deals"`
}

// Service is the deal surface. Reads and writes follow the same contract as
// contacts; Reassign is the ownership-transfer path and is the only way a
// deal's owner or team changes.
type Service interface {
	Create(context.Context, CreateDealRequest) (Deal, error)
	List(context.Context, ListDealRequest) (ListDealResponse, error)
	GetByID(context.Context, GetDealRequest) (Deal, error)
	Update(context.Context, UpdateDealRequest) (Deal, error)
	Delete(context.Context, GetDealRequest) error
	Reassign(context.Context, ReassignDealRequest) (Deal, error)
}

var (
	ErrNoTenantContext  = errors.New("no_tenant_context")
	ErrNoOrganization   = errors.New("no_organization")
	ErrInvalidTitle     = errors.New("invalid_title")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidStage     = errors.New("invalid_stage")
	ErrInvalidContact   = errors.New("invalid_contact")
	ErrInvalidOwner     = errors.New("invalid_owner")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
)
