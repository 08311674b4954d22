package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/authzcontext"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/contact/domain"
	"github.com/smallbiznis/sellora/pkg/db/pagination"
	"github.com/smallbiznis/sellora/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var viewLadder = []authzdomain.Permission{
	authzdomain.PermOrgDataView,
	authzdomain.PermTeamDataView,
	authzdomain.PermSelfDataView,
}

var editLadder = []authzdomain.Permission{
	authzdomain.PermOrgDataEdit,
	authzdomain.PermTeamDataEdit,
	authzdomain.PermSelfDataEdit,
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Authz authzdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	authz authzdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("contact.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		authz: p.Authz,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateContactRequest) (domain.Contact, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Contact{}, domain.ErrNoTenantContext
	}
	principal := tc.Principal()
	if principal.OrgID == 0 {
		return domain.Contact{}, domain.ErrNoOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Contact{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Contact{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now().UTC()
	contact := domain.Contact{
		ID:        s.genID.Generate(),
		OrgID:     principal.OrgID,
		TeamID:    principal.TeamID,
		OwnerID:   principal.UserID,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// A new record carries the creator's own attribution, so the narrowest
	// edit permission is the one to hold. The gate still blocks creation in
	// suspended organizations.
	decision, err := s.authz.Authorize(ctx, tc, authzdomain.PermSelfDataEdit, resourceOf(&contact))
	if err != nil {
		return domain.Contact{}, err
	}
	if decision.Denied() {
		return domain.Contact{}, authzdomain.ErrDenied(authzdomain.PermSelfDataEdit, decision)
	}

	err = rls.Write(s.db.WithContext(ctx), int64(contact.OrgID), int64(principal.UserID), func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &contact)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

func (s *Service) List(ctx context.Context, req domain.ListContactRequest) (domain.ListContactResponse, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.ListContactResponse{}, domain.ErrNoTenantContext
	}

	scope, err := s.authz.BuildFilter(ctx, tc, authzdomain.EntityContact)
	if err != nil {
		return domain.ListContactResponse{}, err
	}

	filter := domain.ListContactFilter{
		Name:  strings.TrimSpace(req.Name),
		Limit: req.Limit(),
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := decodeCursor(req.PageToken)
		if err != nil {
			return domain.ListContactResponse{}, err
		}
		filter.Cursor = cursor
	}

	items, err := s.repo.List(ctx, s.db, scope, filter)
	if err != nil {
		return domain.ListContactResponse{}, err
	}

	pageSize := filter.Limit
	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(contact *domain.Contact) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        contact.ID.String(),
			CreatedAt: contact.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	contacts := make([]domain.Contact, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		contacts = append(contacts, *item)
	}

	resp := domain.ListContactResponse{Contacts: contacts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetContactRequest) (domain.Contact, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Contact{}, domain.ErrNoTenantContext
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Contact{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Contact{}, err
	}
	if item == nil {
		return domain.Contact{}, domain.ErrNotFound
	}

	perm, decision, err := authzdomain.AuthorizeAny(ctx, s.authz, tc, resourceOf(item), viewLadder...)
	if err != nil {
		return domain.Contact{}, err
	}
	if decision.Denied() {
		return domain.Contact{}, authzdomain.ErrDenied(perm, decision)
	}

	return *item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateContactRequest) (domain.Contact, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Contact{}, domain.ErrNoTenantContext
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Contact{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Contact{}, err
	}
	if item == nil {
		return domain.Contact{}, domain.ErrNotFound
	}

	perm, decision, err := authzdomain.AuthorizeAny(ctx, s.authz, tc, resourceOf(item), editLadder...)
	if err != nil {
		return domain.Contact{}, err
	}
	if decision.Denied() {
		return domain.Contact{}, authzdomain.ErrDenied(perm, decision)
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Contact{}, domain.ErrInvalidName
		}
		fields["name"] = name
		item.Name = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !strings.Contains(email, "@") {
			return domain.Contact{}, domain.ErrInvalidEmail
		}
		fields["email"] = email
		item.Email = email
	}
	if len(fields) == 0 {
		return *item, nil
	}

	now := s.clock.Now().UTC()
	fields["updated_at"] = now
	item.UpdatedAt = now

	err = rls.Write(s.db.WithContext(ctx), int64(item.OrgID), int64(tc.Principal().UserID), func(tx *gorm.DB) error {
		return s.repo.Update(ctx, tx, id, fields)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return *item, nil
}

func (s *Service) Delete(ctx context.Context, req domain.GetContactRequest) error {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.ErrNoTenantContext
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}

	perm, decision, err := authzdomain.AuthorizeAny(ctx, s.authz, tc, resourceOf(item), editLadder...)
	if err != nil {
		return err
	}
	if decision.Denied() {
		return authzdomain.ErrDenied(perm, decision)
	}

	return rls.Write(s.db.WithContext(ctx), int64(item.OrgID), int64(tc.Principal().UserID), func(tx *gorm.DB) error {
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func resourceOf(contact *domain.Contact) authzdomain.Resource {
	return authzdomain.Resource{
		Entity:  authzdomain.EntityContact,
		OrgID:   contact.OrgID,
		TeamID:  contact.TeamID,
		OwnerID: contact.OwnerID,
	}
}

func decodeCursor(token string) (*domain.ContactCursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.ContactCursor{ID: id, CreatedAt: createdAt}, nil
}
