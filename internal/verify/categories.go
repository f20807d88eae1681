package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/store"
)

// categories returns the check categories in dependency order: fixes for a
// later category may assume earlier categories already converged.
func (e *Engine) categories(opts Options) []Category {
	categories := []Category{
		{Name: "master-data", Build: e.masterData},
		{Name: "enterprise", Build: e.enterprise},
		{Name: "account", Build: e.account},
		{Name: "registry", Build: e.registryEntries},
		{Name: "license", Build: e.license},
		{Name: "groups", Build: e.groups},
		{Name: "roles", Build: e.roles},
		{Name: "role-links", Build: e.roleLinks},
		{Name: "admin-user", Build: e.adminUser},
		{Name: "workstreams", Build: e.workstreams},
	}
	if opts.WithIdentityProvider && e.identity != nil {
		categories = append(categories, Category{Name: "identity-provider", Build: e.identityProvider})
	}
	return categories
}

// itemExists observes the presence of one item.
func (e *Engine) itemExists(key models.Key) func(context.Context) error {
	return func(ctx context.Context) error {
		var item map[string]any
		err := e.store.Get(ctx, key, &item)
		if isMissing(err) {
			return ErrMissing
		}
		return err
	}
}

// createItem applies a create-if-absent write; a concurrent creation counts
// as success.
func (e *Engine) createItem(item any) func(context.Context) error {
	return func(ctx context.Context) error {
		err := e.store.Create(ctx, item)
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

func (e *Engine) masterData(context.Context) ([]Expectation, error) {
	return []Expectation{
		{
			Name:    "core product",
			Observe: e.itemExists(models.ProductKey(seed.ProductID)),
			Apply:   e.createItem(models.NewProduct(seed.ProductID, seed.ProductName, "Day-0 core product")),
		},
		{
			Name:    "core service",
			Observe: e.itemExists(models.ServiceKey(seed.ServiceID)),
			Apply:   e.createItem(models.NewService(seed.ServiceID, seed.ServiceName, "Day-0 core service")),
		},
	}, nil
}

func (e *Engine) enterprise(context.Context) ([]Expectation, error) {
	return []Expectation{
		{
			Name:    "default enterprise",
			Observe: e.itemExists(models.EnterpriseKey(seed.EnterpriseID)),
			Apply:   e.createItem(models.NewEnterprise(seed.EnterpriseID, seed.AccountID, seed.Enterprise)),
		},
		{
			Name:    "enterprise-product link",
			Observe: e.itemExists(models.EnterpriseProductLinkKey(seed.EnterpriseID, seed.ProductID)),
			Apply:   e.createItem(models.NewLink(models.EnterpriseProductLinkKey(seed.EnterpriseID, seed.ProductID))),
		},
		{
			Name:    "product-service link",
			Observe: e.itemExists(models.ProductServiceLinkKey(seed.ProductID, seed.ServiceID)),
			Apply:   e.createItem(models.NewLink(models.ProductServiceLinkKey(seed.ProductID, seed.ServiceID))),
		},
	}, nil
}

func (e *Engine) account(context.Context) ([]Expectation, error) {
	exp := Expectation{
		Name:    "tenant account",
		Observe: e.itemExists(models.AccountKey(e.cfg.TenantID)),
	}
	// Only the Day-0 account can be re-created from the seed; other tenant
	// accounts come from the account controller.
	if e.cfg.TenantID == seed.AccountID {
		exp.Apply = e.createItem(models.NewAccount(seed.AccountID, seed.AccountName, models.IsolationShared))
	}
	return []Expectation{exp}, nil
}

func (e *Engine) registryEntries(ctx context.Context) ([]Expectation, error) {
	tenantID := e.cfg.TenantID

	isolation := func(ctx context.Context) (models.IsolationMode, error) {
		value, err := e.registry.Get(ctx, registry.IsolationModePath(tenantID))
		return models.IsolationMode(value), err
	}

	return []Expectation{
		{
			Name: "isolation mode recorded",
			Observe: func(ctx context.Context) error {
				_, err := isolation(ctx)
				if isMissing(err) {
					return ErrMissing
				}
				return err
			},
			Apply: func(ctx context.Context) error {
				var account models.Account
				if err := e.store.Get(ctx, models.AccountKey(tenantID), &account); err != nil {
					return fmt.Errorf("cannot derive isolation mode: %w", err)
				}
				return e.registry.Put(ctx, registry.IsolationModePath(tenantID), string(account.Isolation))
			},
		},
		{
			// A tenant is only trusted as ready when the status parameter
			// says active AND, for dedicated tenants, a live describe call
			// confirms the stack.
			Name:    "provisioning status active",
			Observe: e.observeReadiness(tenantID, isolation),
			Apply: func(ctx context.Context) error {
				mode, err := isolation(ctx)
				if err != nil {
					return err
				}
				if mode == models.IsolationDedicated {
					desc, err := e.provisioner.DescribeStack(ctx, e.stackName(tenantID))
					if err != nil {
						return err
					}
					if desc.Status != provisioner.StatusReady {
						return fmt.Errorf("stack not active: %s", desc.StatusDetail)
					}
				}
				return e.registry.Put(ctx, registry.StatusPath(tenantID), registry.StatusActive)
			},
		},
		{
			Name: "storage resource recorded",
			Observe: func(ctx context.Context) error {
				_, err := e.registry.Get(ctx, registry.ResourceNamePath(tenantID))
				if isMissing(err) {
					return ErrMissing
				}
				return err
			},
			Apply: func(ctx context.Context) error {
				mode, err := isolation(ctx)
				if err != nil {
					return err
				}
				if mode != models.IsolationDedicated {
					if e.cfg.SharedTableName == "" {
						return errors.New("no shared table configured")
					}
					return e.registry.Put(ctx, registry.ResourceNamePath(tenantID), e.cfg.SharedTableName)
				}
				desc, err := e.provisioner.DescribeStack(ctx, e.stackName(tenantID))
				if err != nil {
					return fmt.Errorf("cannot derive resource name: %w", err)
				}
				return e.registry.Put(ctx, registry.ResourceNamePath(tenantID), desc.Outputs[provisioner.OutputResourceName])
			},
		},
		{
			Name:     "verification timestamp recorded",
			Optional: true,
			Observe: func(ctx context.Context) error {
				_, err := e.registry.Get(ctx, registry.VerifiedAtPath(tenantID))
				if isMissing(err) {
					return ErrMissing
				}
				return err
			},
			Apply: func(ctx context.Context) error {
				return e.registry.Put(ctx, registry.VerifiedAtPath(tenantID), time.Now().UTC().Format(time.RFC3339))
			},
		},
	}, nil
}

func (e *Engine) observeReadiness(tenantID string, isolation func(context.Context) (models.IsolationMode, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		value, err := e.registry.Get(ctx, registry.StatusPath(tenantID))
		if isMissing(err) {
			return ErrMissing
		}
		if err != nil {
			return err
		}
		if value != registry.StatusActive {
			return fmt.Errorf("%w: status is %q", ErrMissing, value)
		}

		mode, err := isolation(ctx)
		if err != nil && !isMissing(err) {
			return err
		}
		if mode != models.IsolationDedicated {
			return nil
		}

		desc, err := e.provisioner.DescribeStack(ctx, e.stackName(tenantID))
		if isMissing(err) {
			return fmt.Errorf("%w: status active but stack absent", ErrMissing)
		}
		if err != nil {
			return err
		}
		if desc.Status != provisioner.StatusReady {
			return fmt.Errorf("%w: status active but stack is %s", ErrMissing, desc.Status)
		}
		return nil
	}
}

func (e *Engine) stackName(tenantID string) string {
	return fmt.Sprintf("tenant-%s-%s", e.cfg.Environment, tenantID)
}

func (e *Engine) license(context.Context) ([]Expectation, error) {
	return []Expectation{
		{
			Name:    "day-0 license",
			Observe: e.itemExists(models.LicenseKey(seed.AccountID, seed.LicenseID)),
			Apply:   e.createItem(seed.License()),
		},
		{
			Name:     "license not expired",
			Optional: true,
			Observe: func(ctx context.Context) error {
				var license models.License
				err := e.store.Get(ctx, models.LicenseKey(seed.AccountID, seed.LicenseID), &license)
				if isMissing(err) {
					return ErrMissing
				}
				if err != nil {
					return err
				}
				if license.ExpiresAt.Before(time.Now()) {
					return fmt.Errorf("%w: license expired %s", ErrMissing, license.ExpiresAt.Format(time.RFC3339))
				}
				return nil
			},
		},
	}, nil
}

func (e *Engine) groups(context.Context) ([]Expectation, error) {
	var expectations []Expectation
	for _, spec := range seed.Groups() {
		expectations = append(expectations, Expectation{
			Name:    fmt.Sprintf("group %s", spec.Name),
			Observe: e.itemExists(models.GroupKey(seed.AccountID, spec.GroupID)),
			Apply:   e.createItem(models.NewGroup(spec.GroupID, seed.AccountID, seed.EnterpriseID, spec.Name, spec.Description)),
		})
	}
	return expectations, nil
}

func (e *Engine) roles(context.Context) ([]Expectation, error) {
	var expectations []Expectation
	for _, spec := range seed.Roles() {
		expectations = append(expectations,
			Expectation{
				Name:    fmt.Sprintf("role %s", spec.Name),
				Observe: e.itemExists(models.RoleKey(seed.AccountID, spec.RoleID)),
				Apply:   e.createItem(models.NewRole(spec.RoleID, seed.AccountID, seed.EnterpriseID, spec.Name, spec.Description)),
			},
			Expectation{
				Name:    fmt.Sprintf("role %s permissions", spec.Name),
				Observe: e.observePermissions(spec),
				Apply:   e.applyPermissions(spec),
			},
		)
	}
	return expectations, nil
}

// observePermissions asserts exactly one permission item per menu key, each
// carrying the role's capability template.
func (e *Engine) observePermissions(spec seed.RoleSpec) func(context.Context) error {
	return func(ctx context.Context) error {
		var perms []models.Permission
		if err := e.store.Query(ctx, models.RolePK(spec.RoleID), "PERMISSION#", &perms); err != nil {
			return err
		}

		byMenu := make(map[string]models.Permission, len(perms))
		for _, perm := range perms {
			byMenu[perm.MenuKey] = perm
		}

		for _, menu := range seed.MenuKeys {
			perm, exists := byMenu[menu]
			if !exists {
				return fmt.Errorf("%w: no permission for menu %s", ErrMissing, menu)
			}
			if perm.Capabilities != spec.Capabilities {
				return fmt.Errorf("%w: menu %s capabilities diverged", ErrMissing, menu)
			}
			for _, subTab := range perm.SubTabs {
				if subTab.Capabilities != spec.Capabilities {
					return fmt.Errorf("%w: menu %s sub-tab %s capabilities diverged", ErrMissing, menu, subTab.Key)
				}
			}
			delete(byMenu, menu)
		}
		if len(byMenu) > 0 {
			return fmt.Errorf("%w: %d unexpected permission items", ErrMissing, len(byMenu))
		}
		return nil
	}
}

// applyPermissions rewrites the full permission set for a role and removes
// items for undefined menu keys.
func (e *Engine) applyPermissions(spec seed.RoleSpec) func(context.Context) error {
	return func(ctx context.Context) error {
		expected := make(map[string]bool, len(seed.MenuKeys))
		for _, perm := range seed.Permissions(spec) {
			expected[perm.MenuKey] = true
			if err := e.store.Put(ctx, perm); err != nil {
				return err
			}
		}

		var perms []models.Permission
		if err := e.store.Query(ctx, models.RolePK(spec.RoleID), "PERMISSION#", &perms); err != nil {
			return err
		}
		for _, perm := range perms {
			if !expected[perm.MenuKey] {
				if err := e.store.Delete(ctx, perm.Key); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func (e *Engine) roleLinks(context.Context) ([]Expectation, error) {
	var expectations []Expectation
	for _, spec := range seed.Groups() {
		for _, roleID := range spec.RoleIDs {
			groupID, roleID := spec.GroupID, roleID
			expectations = append(expectations, Expectation{
				Name: fmt.Sprintf("group %s role %s link", groupID, roleID),
				Observe: func(ctx context.Context) error {
					// The link invariant: both referenced entities must
					// exist before the link itself counts.
					if err := e.itemExists(models.GroupKey(seed.AccountID, groupID))(ctx); err != nil {
						return fmt.Errorf("group absent: %w", err)
					}
					if err := e.itemExists(models.RoleKey(seed.AccountID, roleID))(ctx); err != nil {
						return fmt.Errorf("role absent: %w", err)
					}
					return e.itemExists(models.GroupRoleLinkKey(groupID, roleID))(ctx)
				},
				Apply: e.createItem(models.NewLink(models.GroupRoleLinkKey(groupID, roleID))),
			})
		}
	}
	return expectations, nil
}

func (e *Engine) adminUser(context.Context) ([]Expectation, error) {
	if e.cfg.AdminEmail == "" {
		return []Expectation{{
			Name:     "admin user configured",
			Optional: true,
			Observe: func(context.Context) error {
				return fmt.Errorf("%w: no admin email configured", ErrMissing)
			},
		}}, nil
	}

	findAdmin := func(ctx context.Context) (*models.User, error) {
		var user models.User
		if err := e.store.FindByNaturalKey(ctx, models.TypeUser, e.cfg.AdminEmail, &user); err != nil {
			return nil, err
		}
		return &user, nil
	}

	return []Expectation{
		{
			Name: "admin user record",
			Observe: func(ctx context.Context) error {
				_, err := findAdmin(ctx)
				if isMissing(err) {
					return ErrMissing
				}
				return err
			},
			Apply: e.createItem(seed.AdminUser(e.cfg.AdminEmail, e.cfg.AdminGivenName, e.cfg.AdminFamilyName)),
		},
		{
			Name: "admin group membership",
			Observe: func(ctx context.Context) error {
				user, err := findAdmin(ctx)
				if isMissing(err) {
					return fmt.Errorf("admin user absent: %w", ErrMissing)
				}
				if err != nil {
					return err
				}
				return e.itemExists(models.UserGroupLinkKey(user.UserID, seed.AdminGroupID))(ctx)
			},
			Apply: func(ctx context.Context) error {
				user, err := findAdmin(ctx)
				if err != nil {
					return err
				}
				link := models.NewLink(models.UserGroupLinkKey(user.UserID, seed.AdminGroupID))
				if err := e.store.Create(ctx, link); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
					return err
				}
				return nil
			},
		},
	}, nil
}

func (e *Engine) workstreams(context.Context) ([]Expectation, error) {
	expectations := []Expectation{{
		Name:    fmt.Sprintf("workstream %s", seed.WorkstreamName),
		Observe: e.itemExists(models.WorkstreamKey(seed.AccountID, seed.WorkstreamID)),
		Apply:   e.createItem(models.NewWorkstream(seed.WorkstreamID, seed.AccountID, seed.EnterpriseID, seed.WorkstreamName)),
	}}

	if e.cfg.AdminEmail == "" {
		return expectations, nil
	}

	// The admin-user category runs first, so the membership fix can assume
	// the user record converged.
	findAdmin := func(ctx context.Context) (*models.User, error) {
		var user models.User
		if err := e.store.FindByNaturalKey(ctx, models.TypeUser, e.cfg.AdminEmail, &user); err != nil {
			return nil, err
		}
		return &user, nil
	}

	expectations = append(expectations, Expectation{
		Name: "admin workstream membership",
		Observe: func(ctx context.Context) error {
			user, err := findAdmin(ctx)
			if isMissing(err) {
				return fmt.Errorf("admin user absent: %w", ErrMissing)
			}
			if err != nil {
				return err
			}
			return e.itemExists(models.UserWorkstreamLinkKey(user.UserID, seed.WorkstreamID))(ctx)
		},
		Apply: func(ctx context.Context) error {
			user, err := findAdmin(ctx)
			if err != nil {
				return err
			}
			link := models.NewLink(models.UserWorkstreamLinkKey(user.UserID, seed.WorkstreamID))
			if err := e.store.Create(ctx, link); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return err
			}
			return nil
		},
	})

	return expectations, nil
}

func (e *Engine) identityProvider(ctx context.Context) ([]Expectation, error) {
	if e.cfg.AdminEmail == "" {
		return []Expectation{{
			Name:     "identity account configured",
			Optional: true,
			Observe: func(context.Context) error {
				return fmt.Errorf("%w: no admin email configured", ErrMissing)
			},
		}}, nil
	}

	email := e.cfg.AdminEmail

	loadPair := func(ctx context.Context) (*models.User, *idp.Account, error) {
		var user models.User
		if err := e.store.FindByNaturalKey(ctx, models.TypeUser, email, &user); err != nil {
			return nil, nil, err
		}
		account, err := e.identity.GetAccount(ctx, email)
		if err != nil {
			return &user, nil, err
		}
		return &user, account, nil
	}

	return []Expectation{
		{
			Name: "identity account exists",
			Observe: func(ctx context.Context) error {
				_, err := e.identity.GetAccount(ctx, email)
				if isMissing(err) {
					return ErrMissing
				}
				return err
			},
			Apply: func(ctx context.Context) error {
				var user models.User
				if err := e.store.FindByNaturalKey(ctx, models.TypeUser, email, &user); err != nil {
					return fmt.Errorf("cannot derive identity attributes: %w", err)
				}
				_, err := e.identity.CreateAccount(ctx, idp.Account{
					Email:      email,
					GivenName:  user.GivenName,
					FamilyName: user.FamilyName,
					Attributes: idp.Attributes{
						TenantID:     user.AccountID,
						EnterpriseID: user.EnterpriseID,
						RoleName:     user.RoleName,
					},
				}, "Vp1!"+uuid.NewString())
				if errors.Is(err, idp.ErrAccountExists) {
					return nil
				}
				return err
			},
		},
		{
			Name: "custom attributes consistent",
			Observe: func(ctx context.Context) error {
				user, account, err := loadPair(ctx)
				if isMissing(err) {
					return ErrMissing
				}
				if err != nil {
					return err
				}
				expected := idp.Attributes{
					TenantID:     user.AccountID,
					EnterpriseID: user.EnterpriseID,
					RoleName:     user.RoleName,
				}
				if account.Attributes != expected {
					return fmt.Errorf("%w: custom attributes diverged", ErrMissing)
				}
				return nil
			},
			Apply: func(ctx context.Context) error {
				var user models.User
				if err := e.store.FindByNaturalKey(ctx, models.TypeUser, email, &user); err != nil {
					return err
				}
				return e.identity.UpdateAttributes(ctx, email, idp.Attributes{
					TenantID:     user.AccountID,
					EnterpriseID: user.EnterpriseID,
					RoleName:     user.RoleName,
				})
			},
		},
		{
			// Once the provider confirms an account, its subject id is
			// backfilled into the store record.
			Name: "subject id synchronized",
			Observe: func(ctx context.Context) error {
				user, account, err := loadPair(ctx)
				if isMissing(err) {
					return ErrMissing
				}
				if err != nil {
					return err
				}
				if user.SubjectID != account.SubjectID {
					return fmt.Errorf("%w: subject id diverged", ErrMissing)
				}
				return nil
			},
			Apply: func(ctx context.Context) error {
				user, account, err := loadPair(ctx)
				if err != nil {
					return err
				}
				return e.store.Update(ctx, user.Key, map[string]any{"subject_id": account.SubjectID})
			},
		},
	}, nil
}
