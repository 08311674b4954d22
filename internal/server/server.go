package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sellora/internal/audit"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	"github.com/smallbiznis/sellora/internal/authorization"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/cloudmetrics"
	"github.com/smallbiznis/sellora/internal/config"
	"github.com/smallbiznis/sellora/internal/contact"
	contactdomain "github.com/smallbiznis/sellora/internal/contact/domain"
	"github.com/smallbiznis/sellora/internal/deal"
	dealdomain "github.com/smallbiznis/sellora/internal/deal/domain"
	"github.com/smallbiznis/sellora/internal/identity"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	"github.com/smallbiznis/sellora/internal/identity/session"
	"github.com/smallbiznis/sellora/internal/membership"
	"github.com/smallbiznis/sellora/internal/observability"
	obsmiddleware "github.com/smallbiznis/sellora/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sellora/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sellora/internal/observability/tracing"
	"github.com/smallbiznis/sellora/internal/organization"
	orgdomain "github.com/smallbiznis/sellora/internal/organization/domain"
	"github.com/smallbiznis/sellora/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	identity.Module,
	session.Module,
	membership.Module,
	organization.Module,
	contact.Module,
	deal.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	log      *zap.Logger
	sessions *session.Manager
	identity identitydomain.Service
	authz    authzdomain.Service
	audit    auditdomain.Service
	orgs     orgdomain.Service
	contacts contactdomain.Service
	deals    dealdomain.Service
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Sessions *session.Manager
	Identity identitydomain.Service
	Authz    authzdomain.Service
	Audit    auditdomain.Service
	Orgs     orgdomain.Service
	Contacts contactdomain.Service
	Deals    dealdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		db:       p.DB,
		log:      p.Log,
		sessions: p.Sessions,
		identity: p.Identity,
		authz:    p.Authz,
		audit:    p.Audit,
		orgs:     p.Orgs,
		contacts: p.Contacts,
		deals:    p.Deals,
	}

	s.registerAuthRoutes()
	s.registerAPIRoutes()

	return s
}

// registerAuthRoutes wires the account endpoints. They run on the session
// tier only: a caller with no membership yet still needs me, change-password
// and logout to work.
func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.SessionRequired(), s.Me)
	auth.POST("/change-password", s.SessionRequired(), s.ChangePassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// Creating the first organization happens before the caller has a
	// tenancy, so it stays on the session tier.
	api.POST("/organizations", s.SessionRequired(), s.CreateOrg)

	api.POST("/test/cleanup", s.TestCleanup)

	authed := api.Group("", s.AuthRequired(), s.OrgContext())

	authed.POST("/authz/check", s.CheckAccess)
	authed.GET("/authz/permissions", s.ListPermissions)

	authed.GET("/organizations/:id", s.GetOrg)
	authed.POST("/organizations/:id/suspend", s.requirePermission(authzdomain.EntityOrganization, authzdomain.PermPlatformOrgsManage), s.SuspendOrg)
	authed.POST("/organizations/:id/reactivate", s.requirePermission(authzdomain.EntityOrganization, authzdomain.PermPlatformOrgsManage), s.ReactivateOrg)
	authed.DELETE("/organizations/:id", s.requirePermission(authzdomain.EntityOrganization, authzdomain.PermPlatformOrgsManage), s.DeleteOrg)

	authed.GET("/teams", s.ListTeams)
	authed.POST("/teams", s.requirePermission(authzdomain.EntityTeam, authzdomain.PermOrgTeamsManage), s.CreateTeam)

	authed.GET("/members", s.ListMembers)
	authed.POST("/members", s.requirePermission(authzdomain.EntityUser, authzdomain.PermOrgUsersManage), s.AddMember)
	authed.PATCH("/members/:userId/role", s.requirePermission(authzdomain.EntityUser, authzdomain.PermOrgUsersManage), s.UpdateMemberRole)
	authed.PATCH("/members/:userId/team", s.requirePermission(authzdomain.EntityUser, authzdomain.PermOrgUsersManage), s.AssignMemberTeam)
	authed.DELETE("/members/:userId", s.requirePermission(authzdomain.EntityUser, authzdomain.PermOrgUsersManage), s.RemoveMember)
	authed.POST("/members/:userId/transfer", s.requirePermission(authzdomain.EntityUser, authzdomain.PermPlatformOrgsManage), s.TransferMember)

	authed.GET("/audit-logs", s.requirePermission(authzdomain.EntityAuditLog, authzdomain.PermOrgAuditView), s.ListAuditLogs)

	// Contacts and deals run the gate inside the service against the loaded
	// row, so their routes carry no permission middleware.
	authed.POST("/contacts", s.CreateContact)
	authed.GET("/contacts", s.ListContacts)
	authed.GET("/contacts/:id", s.GetContactByID)
	authed.PATCH("/contacts/:id", s.UpdateContact)
	authed.DELETE("/contacts/:id", s.DeleteContact)

	authed.POST("/deals", s.CreateDeal)
	authed.GET("/deals", s.ListDeals)
	authed.GET("/deals/:id", s.GetDealByID)
	authed.PATCH("/deals/:id", s.UpdateDeal)
	authed.DELETE("/deals/:id", s.DeleteDeal)
	authed.POST("/deals/:id/reassign", s.ReassignDeal)
}
