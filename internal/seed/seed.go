// Package seed declares the Day-0 desired state of the control plane: the
// fixed graph of entities every deployment must contain before the first
// tenant logs in. All identifiers are deterministic so re-running
// provisioning converges instead of duplicating.
package seed

import (
	"time"

	"github.com/stackpilot/tenantctl/internal/models"
)

// Deterministic identifiers for the Day-0 singletons.
const (
	AccountID    = "acct-day0"
	AccountName  = "Platform"
	EnterpriseID = "ent-day0"
	Enterprise   = "Platform Enterprise"
	ProductID    = "prod-core"
	ProductName  = "Core Platform"
	ServiceID    = "svc-core"
	ServiceName  = "Core Service"
	LicenseID    = "lic-day0"

	AdminGroupID    = "grp-administrators"
	AdminGroupName  = "Administrators"
	DefaultGroupID  = "grp-default"
	DefaultGroup    = "Default"
	AdminRoleID     = "role-admin"
	AdminRoleName   = "Administrator"
	ViewerRoleID    = "role-viewer"
	ViewerRoleName  = "Viewer"
	WorkstreamID    = "ws-general"
	WorkstreamName  = "General"
	AdminUserID     = "usr-admin"
	AdminRoleLabel  = "admin"
	ViewerRoleLabel = "viewer"

	// LicenseSeats and LicenseYears size the Day-0 entitlement.
	LicenseSeats = 25
	LicenseYears = 1
)

// MenuKeys are the application menu areas. Every role must carry exactly one
// permission item per key.
var MenuKeys = []string{
	"dashboard",
	"accounts",
	"users",
	"groups",
	"roles",
	"workstreams",
	"reports",
	"settings",
}

// SettingsSubTabs are the nested areas under the settings menu.
var SettingsSubTabs = []string{"profile", "notifications", "integrations"}

// RoleSpec describes one seeded role and the capability template applied to
// every menu key.
type RoleSpec struct {
	RoleID       string
	Name         string
	Description  string
	Capabilities models.Capabilities
}

// Roles returns the two Day-0 roles: full-access Administrator and view-only
// Viewer.
func Roles() []RoleSpec {
	return []RoleSpec{
		{
			RoleID:       AdminRoleID,
			Name:         AdminRoleName,
			Description:  "Full access to all menu areas",
			Capabilities: models.FullAccess(),
		},
		{
			RoleID:       ViewerRoleID,
			Name:         ViewerRoleName,
			Description:  "Read-only access to all menu areas",
			Capabilities: models.ViewOnly(),
		},
	}
}

// GroupSpec describes one seeded group and the roles linked into it.
type GroupSpec struct {
	GroupID     string
	Name        string
	Description string
	RoleIDs     []string
}

// Groups returns the Day-0 groups with their role links.
func Groups() []GroupSpec {
	return []GroupSpec{
		{
			GroupID:     AdminGroupID,
			Name:        AdminGroupName,
			Description: "Platform administrators",
			RoleIDs:     []string{AdminRoleID},
		},
		{
			GroupID:     DefaultGroupID,
			Name:        DefaultGroup,
			Description: "Self-service signups",
			RoleIDs:     []string{ViewerRoleID},
		},
	}
}

// Permissions expands a role spec into the full permission set, one item per
// menu key, with the settings sub-tabs carrying the same capabilities.
func Permissions(rs RoleSpec) []*models.Permission {
	perms := make([]*models.Permission, 0, len(MenuKeys))
	for _, menu := range MenuKeys {
		var subTabs []models.SubTab
		if menu == "settings" {
			for _, st := range SettingsSubTabs {
				subTabs = append(subTabs, models.SubTab{Key: st, Capabilities: rs.Capabilities})
			}
		}
		perms = append(perms, models.NewPermission(rs.RoleID, menu, rs.Capabilities, subTabs))
	}
	return perms
}

// License returns the Day-0 license item.
func License() *models.License {
	return &models.License{
		Key:          models.LicenseKey(AccountID, LicenseID),
		EntityType:   models.TypeLicense,
		LicenseID:    LicenseID,
		AccountID:    AccountID,
		EnterpriseID: EnterpriseID,
		ProductID:    ProductID,
		ServiceID:    ServiceID,
		Seats:        LicenseSeats,
		ExpiresAt:    time.Now().UTC().AddDate(LicenseYears, 0, 0),
		NotifyExpiry: true,
		CreatedAt:    time.Now().UTC(),
	}
}

// AdminUser returns the Day-0 administrative user for the given email and
// name. The record id is fixed; only the contact attributes vary per
// deployment.
func AdminUser(email, givenName, familyName string) *models.User {
	return models.NewUser(AdminUserID, AccountID, EnterpriseID, email, givenName, familyName, AdminRoleLabel)
}
