// Package scopeq applies scope filters to gorm queries. Every tenant-scoped
// list endpoint goes through Apply, so a filter bug here is a data leak;
// anything unrecognized collapses to a predicate that matches no rows.
package scopeq

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"gorm.io/gorm"
)

// Columns names the tenancy columns of the target table.
type Columns struct {
	Org   string
	Owner string
}

// DefaultColumns matches the column names shared by all scoped tables.
func DefaultColumns() Columns {
	return Columns{Org: "org_id", Owner: "owner_id"}
}

// Apply narrows the query to rows visible under the filter.
func Apply(tx *gorm.DB, filter authzdomain.Filter, cols Columns) *gorm.DB {
	if cols.Org == "" {
		cols.Org = "org_id"
	}
	if cols.Owner == "" {
		cols.Owner = "owner_id"
	}

	switch filter.Kind {
	case authzdomain.FilterKindUnrestricted:
		return tx
	case authzdomain.FilterKindOrganization:
		if filter.OrgID == 0 {
			return matchNothing(tx)
		}
		return tx.Where(cols.Org+" = ?", int64(filter.OrgID))
	case authzdomain.FilterKindOwnerSet:
		ids := ownerIDs(filter.OwnerIDs)
		if len(ids) == 0 {
			return matchNothing(tx)
		}
		if isPostgres(tx) {
			return tx.Where(cols.Owner+" = ANY(?)", pq.Array(ids))
		}
		return tx.Where(cols.Owner+" IN ?", ids)
	case authzdomain.FilterKindOwner:
		if filter.OwnerID == 0 {
			return matchNothing(tx)
		}
		return tx.Where(cols.Owner+" = ?", int64(filter.OwnerID))
	default:
		return matchNothing(tx)
	}
}

func matchNothing(tx *gorm.DB) *gorm.DB {
	return tx.Where("1 = 0")
}

func isPostgres(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	return tx.Dialector.Name() == "postgres"
}

func ownerIDs(ids []snowflake.ID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		out = append(out, int64(id))
	}
	return out
}
