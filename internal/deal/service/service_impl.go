package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/authzcontext"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/deal/domain"
	"github.com/smallbiznis/sellora/pkg/db/pagination"
	"github.com/smallbiznis/sellora/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const actionDealReassigned = "deal.reassigned"

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

var assignLadder = []authzdomain.Permission{
	authzdomain.PermOrgAssign,
	authzdomain.PermTeamAssign,
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Authz   authzdomain.Service
	Members authzdomain.MembershipResolver
	Audit   auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	authz   authzdomain.Service
	members authzdomain.MembershipResolver
	auditor auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("deal.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		authz:   p.Authz,
		members: p.Members,
		auditor: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDealRequest) (domain.Deal, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Deal{}, domain.ErrNoTenantContext
	}
	principal := tc.Principal()
	if principal.OrgID == 0 {
		return domain.Deal{}, domain.ErrNoOrganization
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Deal{}, domain.ErrInvalidTitle
	}
	if req.Amount <= 0 {
		return domain.Deal{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return domain.Deal{}, domain.ErrInvalidCurrency
	}

	var contactID snowflake.ID
	if raw := strings.TrimSpace(req.ContactID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.Deal{}, domain.ErrInvalidContact
		}
		contactID = id
	}

	now := s.clock.Now().UTC()
	deal := domain.Deal{
		ID:        s.genID.Generate(),
		OrgID:     principal.OrgID,
		TeamID:    principal.TeamID,
		OwnerID:   principal.UserID,
		ContactID: contactID,
		Title:     title,
		Stage:     domain.StageOpen,
		Amount:    req.Amount,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	decision, err := s.authz.Authorize(ctx, tc, authzdomain.PermSelfDataEdit, resourceOf(&deal))
	if err != nil {
		return domain.Deal{}, err
	}
	if decision.Denied() {
		return domain.Deal{}, authzdomain.ErrDenied(authzdomain.PermSelfDataEdit, decision)
	}

	err = rls.Write(s.db.WithContext(ctx), int64(deal.OrgID), int64(principal.UserID), func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &deal)
	})
	if err != nil {
		return domain.Deal{}, err
	}
	return deal, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDealRequest) (domain.ListDealResponse, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.ListDealResponse{}, domain.ErrNoTenantContext
	}

	stage := strings.TrimSpace(req.Stage)
	if stage != "" && !domain.ValidStage(stage) {
		return domain.ListDealResponse{}, domain.ErrInvalidStage
	}

	scope, err := s.authz.BuildFilter(ctx, tc, authzdomain.EntityDeal)
	if err != nil {
		return domain.ListDealResponse{}, err
	}

	filter := domain.ListDealFilter{
		Stage: stage,
		Limit: req.Limit(),
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := decodeCursor(req.PageToken)
		if err != nil {
			return domain.ListDealResponse{}, err
		}
		filter.Cursor = cursor
	}

	items, err := s.repo.List(ctx, s.db, scope, filter)
	if err != nil {
		return domain.ListDealResponse{}, err
	}

	pageSize := filter.Limit
	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(deal *domain.Deal) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        deal.ID.String(),
			CreatedAt: deal.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	deals := make([]domain.Deal, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		deals = append(deals, *item)
	}

	resp := domain.ListDealResponse{Deals: deals}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetDealRequest) (domain.Deal, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Deal{}, domain.ErrNoTenantContext
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Deal{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Deal{}, err
	}
	if item == nil {
		return domain.Deal{}, domain.ErrNotFound
	}

	perm, decision, err := authzdomain.AuthorizeAny(ctx, s.authz, tc, resourceOf(item), viewLadder...)
	if err != nil {
		return domain.Deal{}, err
	}
	if decision.Denied() {
		return domain.Deal{}, authzdomain.ErrDenied(perm, decision)
	}

	return *item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateDealRequest) (domain.Deal, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Deal{}, domain.ErrNoTenantContext
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Deal{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Deal{}, err
	}
	if item == nil {
		return domain.Deal{}, domain.ErrNotFound
	}

	perm, decision, err := authzdomain.AuthorizeAny(ctx, s.authz, tc, resourceOf(item), editLadder...)
	if err != nil {
		return domain.Deal{}, err
	}
	if decision.Denied() {
		return domain.Deal{}, authzdomain.ErrDenied(perm, decision)
	}

	fields := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.Deal{}, domain.ErrInvalidTitle
		}
		fields["title"] = title
		item.Title = title
	}
	if req.Stage != nil {
		if !domain.ValidStage(*req.Stage) {
			return domain.Deal{}, domain.ErrInvalidStage
		}
		fields["stage"] = *req.Stage
		item.Stage = *req.Stage
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return domain.Deal{}, domain.ErrInvalidAmount
		}
		fields["amount"] = *req.Amount
		item.Amount = *req.Amount
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
		return domain.Deal{}, err
	}
	return *item, nil
}

func (s *Service) Delete(ctx context.Context, req domain.GetDealRequest) error {
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

// Reassign makes the target user the deal's owner and restamps the team
// column from the target's membership. The caller needs an assignment
// permission over the deal as it stands, and the target must pass the
// assignment rules; both checks run before anything is written.
func (s *Service) Reassign(ctx context.Context, req domain.ReassignDealRequest) (domain.Deal, error) {
	tc, ok := authzcontext.TenantContextFromContext(ctx)
	if !ok {
		return domain.Deal{}, domain.ErrNoTenantContext
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Deal{}, err
	}
	targetID, err := snowflake.ParseString(strings.TrimSpace(req.OwnerID))
	if err != nil || targetID == 0 {
		return domain.Deal{}, domain.ErrInvalidOwner
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Deal{}, err
	}
	if item == nil {
		return domain.Deal{}, domain.ErrNotFound
	}

	perm, decision, err := authzdomain.AuthorizeAny(ctx, s.authz, tc, resourceOf(item), assignLadder...)
	if err != nil {
		return domain.Deal{}, err
	}
	if decision.Denied() {
		return domain.Deal{}, authzdomain.ErrDenied(perm, decision)
	}

	decision, err = s.authz.ValidateAssignment(ctx, tc, targetID)
	if err != nil {
		return domain.Deal{}, err
	}
	if decision.Denied() {
		return domain.Deal{}, authzdomain.ErrDenied(perm, decision)
	}

	target, err := s.members.Membership(ctx, targetID)
	if err != nil {
		return domain.Deal{}, authzdomain.ErrMembershipUnavailable
	}
	if target == nil {
		return domain.Deal{}, authzdomain.ErrDenied(perm, authzdomain.Deny(authzdomain.ReasonTargetUnknown))
	}

	fromOwner := item.OwnerID
	now := s.clock.Now().UTC()
	fields := map[string]any{
		"owner_id":   targetID,
		"team_id":    target.TeamID,
		"updated_at": now,
	}
	err = rls.Write(s.db.WithContext(ctx), int64(item.OrgID), int64(tc.Principal().UserID), func(tx *gorm.DB) error {
		return s.repo.Update(ctx, tx, id, fields)
	})
	if err != nil {
		return domain.Deal{}, err
	}

	item.OwnerID = targetID
	item.TeamID = target.TeamID
	item.UpdatedAt = now

	s.audit(ctx, item, fromOwner)
	return *item, nil
}

func (s *Service) audit(ctx context.Context, deal *domain.Deal, fromOwner snowflake.ID) {
	target := deal.ID.String()
	metadata := map[string]any{
		"from_owner_id": fromOwner.String(),
		"to_owner_id":   deal.OwnerID.String(),
		"title":         deal.Title,
	}
	// The audit service logs its own failures; reassignment never fails on
	// the trail.
	_ = s.auditor.Record(ctx, auditdomain.Entry{
		OrgID:      &deal.OrgID,
		Action:     actionDealReassigned,
		TargetType: "deal",
		TargetID:   &target,
		Metadata:   metadata,
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func resourceOf(deal *domain.Deal) authzdomain.Resource {
	return authzdomain.Resource{
		Entity:  authzdomain.EntityDeal,
		OrgID:   deal.OrgID,
		TeamID:  deal.TeamID,
		OwnerID: deal.OwnerID,
	}
}

func decodeCursor(token string) (*domain.DealCursor, error) {
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
	return &domain.DealCursor{ID: id, CreatedAt: createdAt}, nil
}
