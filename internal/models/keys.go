package models

import "fmt"

// Key is the composite primary key for the control-plane table.
type Key struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
}

// Entity type discriminators stored in the entity_type attribute and used as
// the GSI1 partition key for natural-key lookups.
const (
	TypeAccount    = "ACCOUNT"
	TypeEnterprise = "ENTERPRISE"
	TypeProduct    = "PRODUCT"
	TypeService    = "SERVICE"
	TypeLicense    = "LICENSE"
	TypeGroup      = "GROUP"
	TypeRole       = "ROLE"
	TypePermission = "PERMISSION"
	TypeWorkstream = "WORKSTREAM"
	TypeUser       = "USER"
	TypeLink       = "LINK"
)

func AccountPK(accountID string) string       { return fmt.Sprintf("ACCOUNT#%s", accountID) }
func EnterprisePK(enterpriseID string) string { return fmt.Sprintf("ENTERPRISE#%s", enterpriseID) }
func ProductPK(productID string) string       { return fmt.Sprintf("PRODUCT#%s", productID) }
func ServicePK(serviceID string) string       { return fmt.Sprintf("SERVICE#%s", serviceID) }
func GroupPK(groupID string) string           { return fmt.Sprintf("GROUP#%s", groupID) }
func RolePK(roleID string) string             { return fmt.Sprintf("ROLE#%s", roleID) }
func UserPK(userID string) string             { return fmt.Sprintf("USER#%s", userID) }

func LicenseSK(licenseID string) string       { return fmt.Sprintf("LICENSE#%s", licenseID) }
func GroupSK(groupID string) string           { return fmt.Sprintf("GROUP#%s", groupID) }
func RoleSK(roleID string) string             { return fmt.Sprintf("ROLE#%s", roleID) }
func WorkstreamSK(workstreamID string) string { return fmt.Sprintf("WORKSTREAM#%s", workstreamID) }
func PermissionSK(menuKey string) string      { return fmt.Sprintf("PERMISSION#%s", menuKey) }

// AccountKey returns the (pk, sk) pair for an account item.
func AccountKey(accountID string) Key {
	return Key{PK: AccountPK(accountID), SK: AccountPK(accountID)}
}

// EnterpriseKey returns the (pk, sk) pair for an enterprise item.
func EnterpriseKey(enterpriseID string) Key {
	return Key{PK: EnterprisePK(enterpriseID), SK: EnterprisePK(enterpriseID)}
}

// ProductKey returns the (pk, sk) pair for a product item.
func ProductKey(productID string) Key {
	return Key{PK: ProductPK(productID), SK: ProductPK(productID)}
}

// ServiceKey returns the (pk, sk) pair for a service item.
func ServiceKey(serviceID string) Key {
	return Key{PK: ServicePK(serviceID), SK: ServicePK(serviceID)}
}

// LicenseKey returns the (pk, sk) pair for a license owned by an account.
func LicenseKey(accountID, licenseID string) Key {
	return Key{PK: AccountPK(accountID), SK: LicenseSK(licenseID)}
}

// GroupKey returns the (pk, sk) pair for a group owned by an account.
func GroupKey(accountID, groupID string) Key {
	return Key{PK: AccountPK(accountID), SK: GroupSK(groupID)}
}

// RoleKey returns the (pk, sk) pair for a role owned by an account.
func RoleKey(accountID, roleID string) Key {
	return Key{PK: AccountPK(accountID), SK: RoleSK(roleID)}
}

// PermissionKey returns the (pk, sk) pair for a role's permission on one menu
// area. Permissions share the role's partition so a single query loads the
// full permission set.
func PermissionKey(roleID, menuKey string) Key {
	return Key{PK: RolePK(roleID), SK: PermissionSK(menuKey)}
}

// WorkstreamKey returns the (pk, sk) pair for a workstream owned by an account.
func WorkstreamKey(accountID, workstreamID string) Key {
	return Key{PK: AccountPK(accountID), SK: WorkstreamSK(workstreamID)}
}

// UserKey returns the (pk, sk) pair for a user item.
func UserKey(userID string) Key {
	return Key{PK: UserPK(userID), SK: UserPK(userID)}
}

// Link items share the partition key of one of the two related entities, the
// sort key names the other. Presence of the item is the relationship.

// GroupRoleLinkKey links a role into a group.
func GroupRoleLinkKey(groupID, roleID string) Key {
	return Key{PK: GroupPK(groupID), SK: RoleSK(roleID)}
}

// UserGroupLinkKey links a user into a group.
func UserGroupLinkKey(userID, groupID string) Key {
	return Key{PK: UserPK(userID), SK: GroupSK(groupID)}
}

// UserWorkstreamLinkKey links a user into a workstream.
func UserWorkstreamLinkKey(userID, workstreamID string) Key {
	return Key{PK: UserPK(userID), SK: WorkstreamSK(workstreamID)}
}

// EnterpriseProductLinkKey links an enterprise to its default product.
func EnterpriseProductLinkKey(enterpriseID, productID string) Key {
	return Key{PK: EnterprisePK(enterpriseID), SK: ProductPK(productID)}
}

// ProductServiceLinkKey links a product to its default service.
func ProductServiceLinkKey(productID, serviceID string) Key {
	return Key{PK: ProductPK(productID), SK: ServicePK(serviceID)}
}
