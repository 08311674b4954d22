package service

import (
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/smallbiznis/sellora/internal/authorization/domain"
)

//go:embed model.conf
var modelText string

// NewEnforcer builds the role-permission enforcer entirely in memory. The
// catalog and role map are compile-time constants, so there is no storage
// adapter and no runtime policy mutation; restarting the process is the only
// way the mapping changes.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func roleSubject(role domain.Role) string {
	return "role:" + strings.ToLower(string(role))
}

// seedPolicies loads one policy row per granted permission and one grouping
// link per step of the inheritance chain, so role:platform_admin inherits
// role:org_admin and so on down to role:member.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, role := range domain.AllRoles() {
		for _, perm := range domain.RoleGrants(role) {
			if _, err := enforcer.AddPolicy(roleSubject(role), string(perm)); err != nil {
				return err
			}
		}
		if parent := role.InheritsFrom(); parent != "" {
			if _, err := enforcer.AddGroupingPolicy(roleSubject(role), roleSubject(parent)); err != nil {
				return err
			}
		}
	}
	return nil
}
