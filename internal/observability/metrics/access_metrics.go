package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"gorm.io/gorm"
)

const (
	resolverErrorTypeDeadlineExceeded = "deadline_exceeded"
	resolverErrorTypePrincipal        = "principal"
	resolverErrorTypeDB               = "db"
)

const (
	ResolverErrorTypeDeadlineExceeded = resolverErrorTypeDeadlineExceeded
	ResolverErrorTypePrincipal        = resolverErrorTypePrincipal
	ResolverErrorTypeDB               = resolverErrorTypeDB
	ResolverErrorTypeUnknown          = "unknown"
)

const (
	LookupSourceCache = "cache"
	LookupSourceRedis = "redis"
	LookupSourceStore = "store"
)

const (
	DenyAuditStatusRecorded = "recorded"
	DenyAuditStatusDropped  = "dropped"
	DenyAuditStatusFailed   = "failed"
)

const (
	LockResourceMemberTransfer = "member_transfer"
	LockResourceRoleChange     = "member_role_change"
	LockResourceOrgLifecycle   = "organization_lifecycle"
)

// AccessMetrics captures access engine health signals for Cloud SLOs.
type AccessMetrics struct {
	decisions         *prometheus.CounterVec
	contextBuilds     *prometheus.CounterVec
	filterBuilds      *prometheus.CounterVec
	assignmentChecks  *prometheus.CounterVec
	membershipLookups *prometheus.CounterVec
	rosterLookups     *prometheus.CounterVec
	denyAudit         *prometheus.CounterVec
	resolverLatency   *prometheus.HistogramVec
	dbLockWait        *prometheus.HistogramVec
	allowCount        prometheus.Counter
	denyCounts        map[string]prometheus.Counter
	lockWaitObserver  map[string]prometheus.Observer
}

var (
	accessMetricsOnce sync.Once
	accessMetrics     *AccessMetrics
)

// Access returns the singleton access metrics registry.
func Access() *AccessMetrics {
	return AccessWithConfig(Config{})
}

// AccessWithConfig returns the singleton access metrics registry using config labels.
func AccessWithConfig(cfg Config) *AccessMetrics {
	accessMetricsOnce.Do(func() {
		accessMetrics = newAccessMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return accessMetrics
}

// ResetAccessMetricsForTest resets the access metrics singleton for tests.
func ResetAccessMetricsForTest() {
	accessMetricsOnce = sync.Once{}
	accessMetrics = nil
}

func newAccessMetrics(registerer prometheus.Registerer, cfg Config) *AccessMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "sellora"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_decisions_total",
		Help:        "Authorization gate decisions by outcome and reason.",
		ConstLabels: constLabels,
	}, []string{"decision", "reason"})
	contextBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_context_builds_total",
		Help:        "Tenant context builds by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	filterBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_filter_builds_total",
		Help:        "Scope filter builds by entity and filter kind.",
		ConstLabels: constLabels,
	}, []string{"entity", "kind"})
	assignmentChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_assignment_checks_total",
		Help:        "Assignment validations by outcome and reason.",
		ConstLabels: constLabels,
	}, []string{"decision", "reason"})
	membershipLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_membership_lookups_total",
		Help:        "Membership resolutions by source to watch cache effectiveness.",
		ConstLabels: constLabels,
	}, []string{"source"})
	rosterLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_roster_lookups_total",
		Help:        "Team roster resolutions by source.",
		ConstLabels: constLabels,
	}, []string{"source"})
	denyAudit := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sellora_access_deny_audit_total",
		Help:        "Denial audit writes by status, including flood-control drops.",
		ConstLabels: constLabels,
	}, []string{"status"})
	resolverLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "sellora_access_resolver_duration_seconds",
		Help:        "Membership and organization resolver latency on the request path.",
		Buckets:     []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"resolver"})
	dbLockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "sellora_access_db_lock_wait_seconds",
		Help:        "DB lock wait time for membership mutations under transfer locks.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"resource"})

	registerer.MustRegister(
		decisions,
		contextBuilds,
		filterBuilds,
		assignmentChecks,
		membershipLookups,
		rosterLookups,
		denyAudit,
		resolverLatency,
		dbLockWait,
	)

	allowCount := decisions.WithLabelValues("allow", "")

	denyCounts := map[string]prometheus.Counter{}
	for _, reason := range []authzdomain.ReasonCode{
		authzdomain.ReasonRoleLacksPermission,
		authzdomain.ReasonPlatformScopeRequired,
		authzdomain.ReasonOrganizationMismatch,
		authzdomain.ReasonTeamMismatch,
		authzdomain.ReasonNotRecordOwner,
		authzdomain.ReasonOrgSuspended,
		authzdomain.ReasonInvalidResource,
		authzdomain.ReasonAssignmentNotPermitted,
		authzdomain.ReasonTargetOutsideOrganization,
		authzdomain.ReasonTargetOutsideTeam,
		authzdomain.ReasonTargetUnknown,
	} {
		denyCounts[string(reason)] = decisions.WithLabelValues("deny", string(reason))
	}

	lockWaitObserver := map[string]prometheus.Observer{
		LockResourceMemberTransfer: dbLockWait.WithLabelValues(LockResourceMemberTransfer),
		LockResourceRoleChange:     dbLockWait.WithLabelValues(LockResourceRoleChange),
		LockResourceOrgLifecycle:   dbLockWait.WithLabelValues(LockResourceOrgLifecycle),
	}

	return &AccessMetrics{
		decisions:         decisions,
		contextBuilds:     contextBuilds,
		filterBuilds:      filterBuilds,
		assignmentChecks:  assignmentChecks,
		membershipLookups: membershipLookups,
		rosterLookups:     rosterLookups,
		denyAudit:         denyAudit,
		resolverLatency:   resolverLatency,
		dbLockWait:        dbLockWait,
		allowCount:        allowCount,
		denyCounts:        denyCounts,
		lockWaitObserver:  lockWaitObserver,
	}
}

// IncDecision increments the gate decision counter.
func (m *AccessMetrics) IncDecision(decision authzdomain.Decision) {
	if m == nil {
		return
	}
	if decision.Allowed {
		m.allowCount.Inc()
		return
	}
	if counter, ok := m.denyCounts[string(decision.Reason)]; ok {
		counter.Inc()
		return
	}
	m.decisions.WithLabelValues("deny", string(decision.Reason)).Inc()
}

// IncContextBuild increments the context build counter by outcome.
func (m *AccessMetrics) IncContextBuild(outcome string) {
	if m == nil || m.contextBuilds == nil {
		return
	}
	m.contextBuilds.WithLabelValues(outcome).Inc()
}

// IncFilterBuild increments the filter build counter.
func (m *AccessMetrics) IncFilterBuild(entity authzdomain.EntityType, kind authzdomain.FilterKind) {
	if m == nil || m.filterBuilds == nil {
		return
	}
	m.filterBuilds.WithLabelValues(string(entity), string(kind)).Inc()
}

// IncAssignmentCheck increments the assignment validation counter.
func (m *AccessMetrics) IncAssignmentCheck(decision authzdomain.Decision) {
	if m == nil || m.assignmentChecks == nil {
		return
	}
	if decision.Allowed {
		m.assignmentChecks.WithLabelValues("allow", "").Inc()
		return
	}
	m.assignmentChecks.WithLabelValues("deny", string(decision.Reason)).Inc()
}

// IncMembershipLookup increments membership resolutions by source.
func (m *AccessMetrics) IncMembershipLookup(source string) {
	if m == nil || m.membershipLookups == nil {
		return
	}
	m.membershipLookups.WithLabelValues(source).Inc()
}

// IncRosterLookup increments roster resolutions by source.
func (m *AccessMetrics) IncRosterLookup(source string) {
	if m == nil || m.rosterLookups == nil {
		return
	}
	m.rosterLookups.WithLabelValues(source).Inc()
}

// IncDenyAudit increments denial audit writes by status.
func (m *AccessMetrics) IncDenyAudit(status string) {
	if m == nil || m.denyAudit == nil {
		return
	}
	m.denyAudit.WithLabelValues(status).Inc()
}

// ObserveResolverLatency records resolver latency in seconds.
func (m *AccessMetrics) ObserveResolverLatency(resolver string, duration time.Duration) {
	if m == nil || m.resolverLatency == nil {
		return
	}
	m.resolverLatency.WithLabelValues(resolver).Observe(duration.Seconds())
}

// ObserveDBLockWait records lock wait time for membership mutation work.
func (m *AccessMetrics) ObserveDBLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.lockWaitObserver[resource]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

// ClassifyResolverErrorType returns a low-cardinality error type for logging.
func ClassifyResolverErrorType(err error) string {
	if err == nil {
		return ResolverErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return resolverErrorTypeDeadlineExceeded
	}
	if isPrincipalError(err) {
		return resolverErrorTypePrincipal
	}
	if isDBError(err) {
		return resolverErrorTypeDB
	}
	return ResolverErrorTypeUnknown
}

// IsResolverErrorRetryable reports whether the resolver error should be retried.
func IsResolverErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, authzdomain.ErrMembershipUnavailable) {
		return true
	}
	return isDBError(err)
}

// IsDBLockTimeout reports whether the error is a lock acquisition timeout.
func IsDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

// IsSerializationFailure reports whether the error is a serialization conflict.
func IsSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

// IsUniqueViolation reports whether the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isPrincipalError(err error) bool {
	return errors.Is(err, authzdomain.ErrInvalidRole) ||
		errors.Is(err, authzdomain.ErrOrphanedPrincipal) ||
		errors.Is(err, authzdomain.ErrUnknownPermission) ||
		errors.Is(err, authzdomain.ErrUnknownEntity)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrRegistered) ||
		errors.Is(err, gorm.ErrInvalidValue) ||
		errors.Is(err, gorm.ErrNotImplemented) ||
		errors.Is(err, gorm.ErrDryRunModeUnsupported) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
