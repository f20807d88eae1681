package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stackpilot/tenantctl/internal/models"
)

func TestRoles(t *testing.T) {
	roles := Roles()
	require.Len(t, roles, 2)

	byID := map[string]RoleSpec{}
	for _, role := range roles {
		byID[role.RoleID] = role
	}

	require.Equal(t, models.FullAccess(), byID[AdminRoleID].Capabilities)
	require.Equal(t, models.ViewOnly(), byID[ViewerRoleID].Capabilities)
}

func TestGroupsLinkSeededRoles(t *testing.T) {
	groups := Groups()
	require.Len(t, groups, 2)

	byID := map[string]GroupSpec{}
	for _, group := range groups {
		byID[group.GroupID] = group
	}

	require.Equal(t, []string{AdminRoleID}, byID[AdminGroupID].RoleIDs)
	require.Equal(t, []string{ViewerRoleID}, byID[DefaultGroupID].RoleIDs)
}

func TestPermissions(t *testing.T) {
	for _, spec := range Roles() {
		t.Run(spec.Name, func(t *testing.T) {
			perms := Permissions(spec)
			require.Len(t, perms, len(MenuKeys))

			seen := map[string]bool{}
			for _, perm := range perms {
				require.Equal(t, spec.RoleID, perm.RoleID)
				require.Equal(t, spec.Capabilities, perm.Capabilities)
				require.Equal(t, models.PermissionKey(spec.RoleID, perm.MenuKey), perm.Key)
				seen[perm.MenuKey] = true

				if perm.MenuKey == "settings" {
					require.Len(t, perm.SubTabs, len(SettingsSubTabs))
					for _, subTab := range perm.SubTabs {
						require.Equal(t, spec.Capabilities, subTab.Capabilities)
					}
				} else {
					require.Empty(t, perm.SubTabs)
				}
			}

			for _, menu := range MenuKeys {
				require.True(t, seen[menu], "missing permission for menu %s", menu)
			}
		})
	}
}

func TestLicense(t *testing.T) {
	license := License()
	require.Equal(t, models.LicenseKey(AccountID, LicenseID), license.Key)
	require.Equal(t, LicenseSeats, license.Seats)
	require.True(t, license.NotifyExpiry)
	require.WithinDuration(t, time.Now().AddDate(LicenseYears, 0, 0), license.ExpiresAt, time.Minute)
}

func TestAdminUser(t *testing.T) {
	user := AdminUser("admin@example.com", "Ada", "Admin")
	require.Equal(t, AdminUserID, user.UserID)
	require.Equal(t, AccountID, user.AccountID)
	require.Equal(t, EnterpriseID, user.EnterpriseID)
	require.Equal(t, AdminRoleLabel, user.RoleName)
	require.Equal(t, "admin@example.com", user.GSI1SK)
	require.Empty(t, user.SubjectID)
}
