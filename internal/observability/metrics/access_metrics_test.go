package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"gorm.io/gorm"
)

func TestClassifyResolverErrorType(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: ResolverErrorTypeDeadlineExceeded,
		},
		{
			name: "orphaned_principal",
			err:  authzdomain.ErrOrphanedPrincipal,
			want: ResolverErrorTypePrincipal,
		},
		{
			name: "invalid_role",
			err:  authzdomain.ErrInvalidRole,
			want: ResolverErrorTypePrincipal,
		},
		{
			name: "db",
			err:  &pgconn.PgError{Code: "55P03"},
			want: ResolverErrorTypeDB,
		},
		{
			name: "duplicated_key",
			err:  gorm.ErrDuplicatedKey,
			want: ResolverErrorTypeDB,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: ResolverErrorTypeUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyResolverErrorType(tc.err); got != tc.want {
				t.Fatalf("expected type %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm duplicated key to classify as unique violation")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected pg 23505 to classify as unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("expected pg 40001 not to classify as unique violation")
	}
}

func TestIncDecisionUsesPrebuiltCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newAccessMetrics(registry, Config{
		ServiceName: "sellora",
		Environment: "test",
	})

	metrics.IncDecision(authzdomain.Allow())
	metrics.IncDecision(authzdomain.Deny(authzdomain.ReasonOrganizationMismatch))
	metrics.IncDecision(authzdomain.Deny(authzdomain.ReasonOrganizationMismatch))

	allow := testutil.ToFloat64(metrics.decisions.WithLabelValues("allow", ""))
	if allow != 1 {
		t.Fatalf("expected 1 allow, got %v", allow)
	}
	deny := testutil.ToFloat64(metrics.decisions.WithLabelValues("deny", string(authzdomain.ReasonOrganizationMismatch)))
	if deny != 2 {
		t.Fatalf("expected 2 denies, got %v", deny)
	}
}

func TestIncFilterBuild(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newAccessMetrics(registry, Config{
		ServiceName: "sellora",
		Environment: "test",
	})

	metrics.IncFilterBuild(authzdomain.EntityContact, authzdomain.FilterKindOwnerSet)

	got := testutil.ToFloat64(metrics.filterBuilds.WithLabelValues(
		string(authzdomain.EntityContact),
		string(authzdomain.FilterKindOwnerSet),
	))
	if got != 1 {
		t.Fatalf("expected filter build count 1, got %v", got)
	}
}
