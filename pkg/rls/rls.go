// Package rls pins tenant settings on a database transaction so row level
// security policies can reference them. Policies on tenant-owned tables
// compare org_id against app.current_org_id, so even a query missing its
// org predicate cannot cross tenants. The pins only exist on postgres;
// other dialects carry no policies, so the helpers do nothing there.
package rls

import (
	"strconv"

	"gorm.io/gorm"
)

// WithTenant pins the transaction to a single organization. SET LOCAL does
// not accept bind parameters under the extended protocol, so the pin goes
// through set_config with is_local.
func WithTenant(tx *gorm.DB, orgID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SELECT set_config('app.current_org_id', ?, true)",
		strconv.FormatInt(orgID, 10),
	).Error
}

// WithPrincipal pins the transaction to an organization and acting user.
// Owner-scoped policies read app.current_user_id on top of the org guard.
func WithPrincipal(tx *gorm.DB, orgID, userID int64) error {
	if err := WithTenant(tx, orgID); err != nil {
		return err
	}
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SELECT set_config('app.current_user_id', ?, true)",
		strconv.FormatInt(userID, 10),
	).Error
}

// Write runs fn inside a transaction pinned to the given organization and
// user. Mutating repository calls go through here so the policies see the
// pins for the whole write.
func Write(db *gorm.DB, orgID, userID int64, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := WithPrincipal(tx, orgID, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}
