package models

import "time"

// IsolationMode selects how a tenant's key-value storage is provisioned.
type IsolationMode string

const (
	IsolationShared    IsolationMode = "shared"
	IsolationDedicated IsolationMode = "dedicated"
)

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusCreating AccountStatus = "creating"
	AccountStatusDeleting AccountStatus = "deleting"
)

// UserStatus is the lifecycle status of a user record.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInvited  UserStatus = "invited"
	UserStatusDisabled UserStatus = "disabled"
)

// Account is the tenant-level aggregate root. All tenant-scoped entities
// (licenses, groups, roles, workstreams) share its partition key.
type Account struct {
	Key
	EntityType string        `dynamodbav:"entity_type"`
	GSI1PK     string        `dynamodbav:"gsi1pk"`
	GSI1SK     string        `dynamodbav:"gsi1sk"`
	AccountID  string        `dynamodbav:"account_id"`
	Name       string        `dynamodbav:"name"`
	Isolation  IsolationMode `dynamodbav:"isolation_mode"`
	Status     AccountStatus `dynamodbav:"status"`
	CreatedAt  time.Time     `dynamodbav:"created_at"`
}

// NewAccount builds an account item with its key and index attributes set.
func NewAccount(accountID, name string, isolation IsolationMode) *Account {
	return &Account{
		Key:        AccountKey(accountID),
		EntityType: TypeAccount,
		GSI1PK:     TypeAccount,
		GSI1SK:     name,
		AccountID:  accountID,
		Name:       name,
		Isolation:  isolation,
		Status:     AccountStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
}

// Enterprise is the organisational unit below an account. The Day-0 seed has
// exactly one, linked to the core product and service.
type Enterprise struct {
	Key
	EntityType   string    `dynamodbav:"entity_type"`
	GSI1PK       string    `dynamodbav:"gsi1pk"`
	GSI1SK       string    `dynamodbav:"gsi1sk"`
	EnterpriseID string    `dynamodbav:"enterprise_id"`
	AccountID    string    `dynamodbav:"account_id"`
	Name         string    `dynamodbav:"name"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

func NewEnterprise(enterpriseID, accountID, name string) *Enterprise {
	return &Enterprise{
		Key:          EnterpriseKey(enterpriseID),
		EntityType:   TypeEnterprise,
		GSI1PK:       TypeEnterprise,
		GSI1SK:       name,
		EnterpriseID: enterpriseID,
		AccountID:    accountID,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
}

// Product is a global singleton in the Day-0 seed.
type Product struct {
	Key
	EntityType  string    `dynamodbav:"entity_type"`
	GSI1PK      string    `dynamodbav:"gsi1pk"`
	GSI1SK      string    `dynamodbav:"gsi1sk"`
	ProductID   string    `dynamodbav:"product_id"`
	Name        string    `dynamodbav:"name"`
	Description string    `dynamodbav:"description,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
}

func NewProduct(productID, name, description string) *Product {
	return &Product{
		Key:         ProductKey(productID),
		EntityType:  TypeProduct,
		GSI1PK:      TypeProduct,
		GSI1SK:      name,
		ProductID:   productID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// Service is a global singleton in the Day-0 seed.
type Service struct {
	Key
	EntityType  string    `dynamodbav:"entity_type"`
	GSI1PK      string    `dynamodbav:"gsi1pk"`
	GSI1SK      string    `dynamodbav:"gsi1sk"`
	ServiceID   string    `dynamodbav:"service_id"`
	Name        string    `dynamodbav:"name"`
	Description string    `dynamodbav:"description,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
}

func NewService(serviceID, name, description string) *Service {
	return &Service{
		Key:         ServiceKey(serviceID),
		EntityType:  TypeService,
		GSI1PK:      TypeService,
		GSI1SK:      name,
		ServiceID:   serviceID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// License records entitlement for an account against a product/service pair.
type License struct {
	Key
	EntityType   string    `dynamodbav:"entity_type"`
	LicenseID    string    `dynamodbav:"license_id"`
	AccountID    string    `dynamodbav:"account_id"`
	EnterpriseID string    `dynamodbav:"enterprise_id"`
	ProductID    string    `dynamodbav:"product_id"`
	ServiceID    string    `dynamodbav:"service_id"`
	Seats        int       `dynamodbav:"seats"`
	ExpiresAt    time.Time `dynamodbav:"expires_at"`
	NotifyExpiry bool      `dynamodbav:"notify_expiry"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

// Group is an account-scoped collection of users sharing a set of roles.
type Group struct {
	Key
	EntityType   string    `dynamodbav:"entity_type"`
	GSI2PK       string    `dynamodbav:"gsi2pk"`
	GSI2SK       string    `dynamodbav:"gsi2sk"`
	GroupID      string    `dynamodbav:"group_id"`
	AccountID    string    `dynamodbav:"account_id"`
	EnterpriseID string    `dynamodbav:"enterprise_id"`
	Name         string    `dynamodbav:"name"`
	Description  string    `dynamodbav:"description,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

// NewGroup builds a group item. GSI2 supports "find group by name within an
// account" without a scan.
func NewGroup(groupID, accountID, enterpriseID, name, description string) *Group {
	return &Group{
		Key:          GroupKey(accountID, groupID),
		EntityType:   TypeGroup,
		GSI2PK:       AccountPK(accountID),
		GSI2SK:       TypeGroup + "#" + name,
		GroupID:      groupID,
		AccountID:    accountID,
		EnterpriseID: enterpriseID,
		Name:         name,
		Description:  description,
		CreatedAt:    time.Now().UTC(),
	}
}

// Role is an account-scoped named permission set.
type Role struct {
	Key
	EntityType   string    `dynamodbav:"entity_type"`
	GSI2PK       string    `dynamodbav:"gsi2pk"`
	GSI2SK       string    `dynamodbav:"gsi2sk"`
	RoleID       string    `dynamodbav:"role_id"`
	AccountID    string    `dynamodbav:"account_id"`
	EnterpriseID string    `dynamodbav:"enterprise_id"`
	Name         string    `dynamodbav:"name"`
	Description  string    `dynamodbav:"description,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

func NewRole(roleID, accountID, enterpriseID, name, description string) *Role {
	return &Role{
		Key:          RoleKey(accountID, roleID),
		EntityType:   TypeRole,
		GSI2PK:       AccountPK(accountID),
		GSI2SK:       TypeRole + "#" + name,
		RoleID:       roleID,
		AccountID:    accountID,
		EnterpriseID: enterpriseID,
		Name:         name,
		Description:  description,
		CreatedAt:    time.Now().UTC(),
	}
}

// Capabilities are the four independent booleans carried by every permission
// and sub-tab.
type Capabilities struct {
	View   bool `dynamodbav:"view"`
	Create bool `dynamodbav:"create"`
	Edit   bool `dynamodbav:"edit"`
	Delete bool `dynamodbav:"delete"`
}

// FullAccess grants all four capabilities.
func FullAccess() Capabilities {
	return Capabilities{View: true, Create: true, Edit: true, Delete: true}
}

// ViewOnly grants only the view capability.
func ViewOnly() Capabilities {
	return Capabilities{View: true}
}

// SubTab is a nested permission area below a menu key.
type SubTab struct {
	Key          string       `dynamodbav:"key"`
	Capabilities Capabilities `dynamodbav:"capabilities"`
}

// Permission is one role's capabilities on one application menu area.
type Permission struct {
	Key
	EntityType   string       `dynamodbav:"entity_type"`
	RoleID       string       `dynamodbav:"role_id"`
	MenuKey      string       `dynamodbav:"menu_key"`
	Capabilities Capabilities `dynamodbav:"capabilities"`
	SubTabs      []SubTab     `dynamodbav:"sub_tabs,omitempty"`
}

// NewPermission builds a permission item for a role and menu area.
func NewPermission(roleID, menuKey string, caps Capabilities, subTabs []SubTab) *Permission {
	return &Permission{
		Key:          PermissionKey(roleID, menuKey),
		EntityType:   TypePermission,
		RoleID:       roleID,
		MenuKey:      menuKey,
		Capabilities: caps,
		SubTabs:      subTabs,
	}
}

// Workstream is an account-scoped unit of work assignment.
type Workstream struct {
	Key
	EntityType   string    `dynamodbav:"entity_type"`
	GSI2PK       string    `dynamodbav:"gsi2pk"`
	GSI2SK       string    `dynamodbav:"gsi2sk"`
	WorkstreamID string    `dynamodbav:"workstream_id"`
	AccountID    string    `dynamodbav:"account_id"`
	EnterpriseID string    `dynamodbav:"enterprise_id"`
	Name         string    `dynamodbav:"name"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

func NewWorkstream(workstreamID, accountID, enterpriseID, name string) *Workstream {
	return &Workstream{
		Key:          WorkstreamKey(accountID, workstreamID),
		EntityType:   TypeWorkstream,
		GSI2PK:       AccountPK(accountID),
		GSI2SK:       TypeWorkstream + "#" + name,
		WorkstreamID: workstreamID,
		AccountID:    accountID,
		EnterpriseID: enterpriseID,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
}

// User is a platform identity. SubjectID is the identity provider's subject
// for the same email; it stays empty until the two systems are synchronized.
type User struct {
	Key
	EntityType   string     `dynamodbav:"entity_type"`
	GSI1PK       string     `dynamodbav:"gsi1pk"`
	GSI1SK       string     `dynamodbav:"gsi1sk"`
	UserID       string     `dynamodbav:"user_id"`
	AccountID    string     `dynamodbav:"account_id"`
	EnterpriseID string     `dynamodbav:"enterprise_id"`
	Email        string     `dynamodbav:"email"`
	GivenName    string     `dynamodbav:"given_name"`
	FamilyName   string     `dynamodbav:"family_name"`
	RoleName     string     `dynamodbav:"role_name"`
	Status       UserStatus `dynamodbav:"status"`
	SubjectID    string     `dynamodbav:"subject_id,omitempty"`
	CreatedAt    time.Time  `dynamodbav:"created_at"`
}

// NewUser builds a user item. GSI1 supports lookup by email.
func NewUser(userID, accountID, enterpriseID, email, givenName, familyName, roleName string) *User {
	return &User{
		Key:          UserKey(userID),
		EntityType:   TypeUser,
		GSI1PK:       TypeUser,
		GSI1SK:       email,
		UserID:       userID,
		AccountID:    accountID,
		EnterpriseID: enterpriseID,
		Email:        email,
		GivenName:    givenName,
		FamilyName:   familyName,
		RoleName:     roleName,
		Status:       UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
}

// Link is an existence-only relationship item. Presence of the record is the
// relationship; it carries no foreign-key columns beyond its own key.
type Link struct {
	Key
	EntityType string    `dynamodbav:"entity_type"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// NewLink builds a link item for a precomputed link key.
func NewLink(key Key) *Link {
	return &Link{Key: key, EntityType: TypeLink, CreatedAt: time.Now().UTC()}
}
