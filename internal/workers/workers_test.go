package workers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/notify"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/store/memory"
)

type testWorkers struct {
	workers     *Workers
	store       *memory.EntityStore
	registry    *registry.MemoryRegistry
	provisioner *provisioner.MemoryProvisioner
	identity    *idp.MemoryProvider
	notifier    *notify.MemoryNotifier
}

func newTestWorkers(t *testing.T) *testWorkers {
	t.Helper()

	tw := &testWorkers{
		store:       memory.NewEntityStore(),
		registry:    registry.NewMemoryRegistry(),
		provisioner: provisioner.NewMemoryProvisioner(),
		identity:    idp.NewMemoryProvider(),
		notifier:    notify.NewMemoryNotifier(),
	}
	tw.workers = New(tw.store, tw.registry, tw.provisioner, tw.identity, tw.notifier, Config{
		Environment:          "test",
		SharedTableName:      "platform-shared",
		AdminProviderGroup:   "platform-admins",
		DefaultProviderGroup: "platform-users",
		SendCredentials:      true,
	})
	return tw
}

func (tw *testWorkers) param(t *testing.T, name string) string {
	t.Helper()
	value, err := tw.registry.Get(context.Background(), name)
	require.NoError(t, err)
	return value
}

func TestRegisterOrProvision(t *testing.T) {
	ctx := context.Background()

	t.Run("shared tenant registers without infrastructure", func(t *testing.T) {
		tw := newTestWorkers(t)

		result, err := tw.workers.RegisterOrProvision(ctx, ProvisionRequest{
			TenantID:   "t-1",
			TenantName: "Acme",
			Isolation:  models.IsolationShared,
		})
		require.NoError(t, err)
		require.Equal(t, registry.StatusActive, result.Status)
		require.Equal(t, "platform-shared", result.ResourceName)

		require.Equal(t, "shared", tw.param(t, registry.IsolationModePath("t-1")))
		require.Equal(t, "platform-shared", tw.param(t, registry.ResourceNamePath("t-1")))
		require.Equal(t, registry.StatusActive, tw.param(t, registry.StatusPath("t-1")))

		// Re-running converges on the same state.
		again, err := tw.workers.RegisterOrProvision(ctx, ProvisionRequest{
			TenantID:  "t-1",
			Isolation: models.IsolationShared,
		})
		require.NoError(t, err)
		require.Equal(t, result.Status, again.Status)
	})

	t.Run("dedicated tenant provisions a stack", func(t *testing.T) {
		tw := newTestWorkers(t)
		tw.provisioner.SetStatus("tenant-test-t-2", provisioner.StatusReady, "CREATE_COMPLETE", map[string]string{
			provisioner.OutputResourceName: "tenant-test-t-2-table",
			provisioner.OutputResourceArn:  "arn:aws:dynamodb:local:000000000000:table/tenant-test-t-2-table",
		})

		result, err := tw.workers.RegisterOrProvision(ctx, ProvisionRequest{
			TenantID:   "t-2",
			TenantName: "Northwind",
			Isolation:  models.IsolationDedicated,
		})
		require.NoError(t, err)
		require.Equal(t, registry.StatusActive, result.Status)
		require.Equal(t, "tenant-test-t-2-table", result.ResourceName)
		require.NotEmpty(t, result.StackID)

		require.Equal(t, "dedicated", tw.param(t, registry.IsolationModePath("t-2")))
		require.Equal(t, "tenant-test-t-2-table", tw.param(t, registry.ResourceNamePath("t-2")))
		require.Equal(t, registry.StatusActive, tw.param(t, registry.StatusPath("t-2")))
	})

	t.Run("stack creation failure leaves status creating", func(t *testing.T) {
		tw := newTestWorkers(t)
		tw.provisioner.CreateErr = errors.New("template validation failed")

		_, err := tw.workers.RegisterOrProvision(ctx, ProvisionRequest{
			TenantID:  "t-3",
			Isolation: models.IsolationDedicated,
		})
		require.Error(t, err)
		require.Equal(t, registry.StatusCreating, tw.param(t, registry.StatusPath("t-3")))
	})

	t.Run("unknown isolation mode is rejected", func(t *testing.T) {
		tw := newTestWorkers(t)

		_, err := tw.workers.RegisterOrProvision(ctx, ProvisionRequest{
			TenantID:  "t-4",
			Isolation: models.IsolationMode("hybrid"),
		})
		require.ErrorContains(t, err, "unknown isolation mode")
	})
}

func TestPollStatusShared(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name        string
		stored      string
		priorStatus provisioner.Status
		want        provisioner.Status
	}{
		{name: "active maps to ready", stored: registry.StatusActive, want: provisioner.StatusReady},
		{name: "creating stays creating", stored: registry.StatusCreating, want: provisioner.StatusCreating},
		{name: "deleting stays deleting", stored: registry.StatusDeleting, want: provisioner.StatusDeleting},
		{name: "deleted stays deleted", stored: registry.StatusDeleted, want: provisioner.StatusDeleted},
		{name: "failed stays failed", stored: registry.StatusFailed, want: provisioner.StatusFailed},
		{name: "missing while deleting means deleted", priorStatus: provisioner.StatusDeleting, want: provisioner.StatusDeleted},
		{name: "missing otherwise means creating", want: provisioner.StatusCreating},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tw := newTestWorkers(t)
			if tc.stored != "" {
				require.NoError(t, tw.registry.Put(ctx, registry.StatusPath("t-1"), tc.stored))
			}

			result, err := tw.workers.PollStatus(ctx, PollRequest{
				TenantID:    "t-1",
				Isolation:   models.IsolationShared,
				PriorStatus: tc.priorStatus,
			})
			require.NoError(t, err)
			require.Equal(t, tc.want, result.Status)
		})
	}

	t.Run("unknown stored value is an error", func(t *testing.T) {
		tw := newTestWorkers(t)
		require.NoError(t, tw.registry.Put(ctx, registry.StatusPath("t-1"), "limbo"))

		_, err := tw.workers.PollStatus(ctx, PollRequest{TenantID: "t-1", Isolation: models.IsolationShared})
		require.ErrorContains(t, err, "unknown provisioning status")
	})
}

func TestPollStatusDedicated(t *testing.T) {
	ctx := context.Background()

	t.Run("missing stack means deleted", func(t *testing.T) {
		tw := newTestWorkers(t)

		result, err := tw.workers.PollStatus(ctx, PollRequest{TenantID: "t-1", Isolation: models.IsolationDedicated})
		require.NoError(t, err)
		require.Equal(t, provisioner.StatusDeleted, result.Status)
	})

	t.Run("ready stack persists resource name and active status", func(t *testing.T) {
		tw := newTestWorkers(t)
		tw.provisioner.SetStatus("tenant-test-t-1", provisioner.StatusReady, "CREATE_COMPLETE", map[string]string{
			provisioner.OutputResourceName: "tenant-test-t-1-table",
		})

		result, err := tw.workers.PollStatus(ctx, PollRequest{TenantID: "t-1", Isolation: models.IsolationDedicated})
		require.NoError(t, err)
		require.Equal(t, provisioner.StatusReady, result.Status)
		require.Equal(t, "tenant-test-t-1-table", result.ResourceName)

		require.Equal(t, "tenant-test-t-1-table", tw.param(t, registry.ResourceNamePath("t-1")))
		require.Equal(t, registry.StatusActive, tw.param(t, registry.StatusPath("t-1")))
	})

	t.Run("failed stack persists failed status", func(t *testing.T) {
		tw := newTestWorkers(t)
		tw.provisioner.SetStatus("tenant-test-t-1", provisioner.StatusFailed, "ROLLBACK_COMPLETE", nil)

		result, err := tw.workers.PollStatus(ctx, PollRequest{TenantID: "t-1", Isolation: models.IsolationDedicated})
		require.NoError(t, err)
		require.Equal(t, provisioner.StatusFailed, result.Status)
		require.Equal(t, registry.StatusFailed, tw.param(t, registry.StatusPath("t-1")))
	})
}

func TestDeprovision(t *testing.T) {
	ctx := context.Background()

	t.Run("shared tenant is marked deleted immediately", func(t *testing.T) {
		tw := newTestWorkers(t)

		result, err := tw.workers.Deprovision(ctx, DeprovisionRequest{TenantID: "t-1", Isolation: models.IsolationShared})
		require.NoError(t, err)
		require.Equal(t, registry.StatusDeleted, result.Status)
		require.Equal(t, registry.StatusDeleted, tw.param(t, registry.StatusPath("t-1")))
	})

	t.Run("dedicated tenant starts stack deletion", func(t *testing.T) {
		tw := newTestWorkers(t)
		tw.provisioner.SetStatus("tenant-test-t-2", provisioner.StatusReady, "CREATE_COMPLETE", nil)

		result, err := tw.workers.Deprovision(ctx, DeprovisionRequest{TenantID: "t-2", Isolation: models.IsolationDedicated})
		require.NoError(t, err)
		require.Equal(t, registry.StatusDeleting, result.Status)

		desc, err := tw.provisioner.DescribeStack(ctx, "tenant-test-t-2")
		require.NoError(t, err)
		require.Equal(t, provisioner.StatusDeleting, desc.Status)
	})

	t.Run("already absent stack still succeeds", func(t *testing.T) {
		tw := newTestWorkers(t)

		result, err := tw.workers.Deprovision(ctx, DeprovisionRequest{TenantID: "t-3", Isolation: models.IsolationDedicated})
		require.NoError(t, err)
		require.Equal(t, registry.StatusDeleting, result.Status)
	})
}

func TestDedicatedLifecycle(t *testing.T) {
	ctx := context.Background()
	tw := newTestWorkers(t)

	stackName := tw.workers.StackName("t-10")
	tw.provisioner.SetStatus(stackName, provisioner.StatusReady, "CREATE_COMPLETE", map[string]string{
		provisioner.OutputResourceName: "tenant-test-t-10-table",
	})

	provisioned, err := tw.workers.RegisterOrProvision(ctx, ProvisionRequest{
		TenantID:   "t-10",
		TenantName: "Globex",
		Isolation:  models.IsolationDedicated,
	})
	require.NoError(t, err)
	require.Equal(t, registry.StatusActive, provisioned.Status)

	polled, err := tw.workers.PollStatus(ctx, PollRequest{TenantID: "t-10", Isolation: models.IsolationDedicated})
	require.NoError(t, err)
	require.Equal(t, provisioner.StatusReady, polled.Status)
	require.Equal(t, "tenant-test-t-10-table", tw.param(t, registry.ResourceNamePath("t-10")))
	require.Equal(t, registry.StatusActive, tw.param(t, registry.StatusPath("t-10")))

	deprovisioned, err := tw.workers.Deprovision(ctx, DeprovisionRequest{TenantID: "t-10", Isolation: models.IsolationDedicated})
	require.NoError(t, err)
	require.Equal(t, registry.StatusDeleting, deprovisioned.Status)
	require.Equal(t, registry.StatusDeleting, tw.param(t, registry.StatusPath("t-10")))

	tw.provisioner.SetStatus(stackName, provisioner.StatusDeleted, "DELETE_COMPLETE", nil)

	final, err := tw.workers.PollStatus(ctx, PollRequest{TenantID: "t-10", Isolation: models.IsolationDedicated})
	require.NoError(t, err)
	require.Equal(t, provisioner.StatusDeleted, final.Status)
}

func TestCreateAdminIdentity(t *testing.T) {
	ctx := context.Background()

	request := AdminRequest{
		TenantID:     seed.AccountID,
		EnterpriseID: seed.EnterpriseID,
		UserID:       seed.AdminUserID,
		Email:        "admin@example.com",
		GivenName:    "Ada",
		FamilyName:   "Admin",
	}

	t.Run("creates identity account, user record and group link", func(t *testing.T) {
		tw := newTestWorkers(t)
		adminGroup := models.NewGroup(seed.AdminGroupID, seed.AccountID, seed.EnterpriseID, seed.AdminGroupName, "")
		require.NoError(t, tw.store.Put(ctx, adminGroup))
		workstream := models.NewWorkstream(seed.WorkstreamID, seed.AccountID, seed.EnterpriseID, seed.WorkstreamName)
		require.NoError(t, tw.store.Put(ctx, workstream))

		result, err := tw.workers.CreateAdminIdentity(ctx, request)
		require.NoError(t, err)
		require.True(t, result.Created)
		require.Equal(t, AdminStatusCreated, result.Status)
		require.Equal(t, seed.AdminUserID, result.UserID)
		require.NotEmpty(t, result.SubjectID)

		var user models.User
		require.NoError(t, tw.store.Get(ctx, models.UserKey(seed.AdminUserID), &user))
		require.Equal(t, result.SubjectID, user.SubjectID)
		require.Equal(t, seed.AdminRoleLabel, user.RoleName)

		var link models.Link
		require.NoError(t, tw.store.Get(ctx, models.UserGroupLinkKey(seed.AdminUserID, seed.AdminGroupID), &link))
		require.NoError(t, tw.store.Get(ctx, models.UserWorkstreamLinkKey(seed.AdminUserID, seed.WorkstreamID), &link))

		groups, err := tw.identity.ListGroups(ctx, request.Email)
		require.NoError(t, err)
		require.Contains(t, groups, "platform-admins")

		messages := tw.notifier.Messages()
		require.Len(t, messages, 1)
		require.Equal(t, request.Email, messages[0].To)
	})

	t.Run("second invocation reports already exists", func(t *testing.T) {
		tw := newTestWorkers(t)

		first, err := tw.workers.CreateAdminIdentity(ctx, request)
		require.NoError(t, err)
		require.True(t, first.Created)

		second, err := tw.workers.CreateAdminIdentity(ctx, request)
		require.NoError(t, err)
		require.False(t, second.Created)
		require.Equal(t, AdminStatusAlreadyExists, second.Status)
		require.Equal(t, first.UserID, second.UserID)

		require.Len(t, tw.notifier.Messages(), 1)
	})

	t.Run("existing identity account is reconciled without credentials", func(t *testing.T) {
		tw := newTestWorkers(t)
		subjectID, err := tw.identity.CreateAccount(ctx, idp.Account{Email: request.Email}, "preexisting")
		require.NoError(t, err)

		result, err := tw.workers.CreateAdminIdentity(ctx, request)
		require.NoError(t, err)
		require.True(t, result.Created)
		require.Equal(t, subjectID, result.SubjectID)

		account, err := tw.identity.GetAccount(ctx, request.Email)
		require.NoError(t, err)
		require.Equal(t, seed.AccountID, account.Attributes.TenantID)
		require.Equal(t, seed.AdminRoleLabel, account.Attributes.RoleName)

		require.Empty(t, tw.notifier.Messages())
	})

	t.Run("concurrent invocations converge on one record", func(t *testing.T) {
		tw := newTestWorkers(t)

		// No caller-supplied user id, so each invocation generates its own
		// and only the conditional write decides which one survives.
		raced := request
		raced.UserID = ""

		results := make([]*AdminResult, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = tw.workers.CreateAdminIdentity(ctx, raced)
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		created := 0
		for _, result := range results {
			if result.Created {
				created++
			}
		}
		require.Equal(t, 1, created)

		// Both invocations report the id of the record that won the write.
		var user models.User
		require.NoError(t, tw.store.FindByNaturalKey(ctx, models.TypeUser, raced.Email, &user))
		require.Equal(t, user.UserID, results[0].UserID)
		require.Equal(t, user.UserID, results[1].UserID)
	})

	t.Run("notification failure does not fail the worker", func(t *testing.T) {
		tw := newTestWorkers(t)
		tw.notifier.SendErr = errors.New("smtp unavailable")

		result, err := tw.workers.CreateAdminIdentity(ctx, request)
		require.NoError(t, err)
		require.True(t, result.Created)
	})
}

func TestPostSignupSync(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown signup synthesizes a default viewer", func(t *testing.T) {
		tw := newTestWorkers(t)
		subjectID, err := tw.identity.CreateAccount(ctx, idp.Account{Email: "new@example.com"}, "signup")
		require.NoError(t, err)

		tw.workers.PostSignupSync(ctx, SignupEvent{
			Email:      "new@example.com",
			SubjectID:  subjectID,
			GivenName:  "Nina",
			FamilyName: "New",
		})

		var user models.User
		require.NoError(t, tw.store.FindByNaturalKey(ctx, models.TypeUser, "new@example.com", &user))
		require.Equal(t, seed.AccountID, user.AccountID)
		require.Equal(t, seed.ViewerRoleLabel, user.RoleName)
		require.Equal(t, subjectID, user.SubjectID)

		var group models.Group
		require.NoError(t, tw.store.Get(ctx, models.GroupKey(seed.AccountID, seed.DefaultGroupID), &group))

		var link models.Link
		require.NoError(t, tw.store.Get(ctx, models.UserGroupLinkKey(user.UserID, seed.DefaultGroupID), &link))
		require.NoError(t, tw.store.Get(ctx, models.GroupRoleLinkKey(seed.DefaultGroupID, seed.ViewerRoleID), &link))

		account, err := tw.identity.GetAccount(ctx, "new@example.com")
		require.NoError(t, err)
		require.Equal(t, seed.AccountID, account.Attributes.TenantID)

		groups, err := tw.identity.ListGroups(ctx, "new@example.com")
		require.NoError(t, err)
		require.Contains(t, groups, "platform-users")
	})

	t.Run("known user gets attributes synced without new records", func(t *testing.T) {
		tw := newTestWorkers(t)
		_, err := tw.identity.CreateAccount(ctx, idp.Account{Email: "known@example.com"}, "signup")
		require.NoError(t, err)

		existing := models.NewUser("usr-9", "t-9", "ent-9", "known@example.com", "Kay", "Known", seed.AdminRoleLabel)
		require.NoError(t, tw.store.Put(ctx, existing))
		before := tw.store.Len()

		tw.workers.PostSignupSync(ctx, SignupEvent{Email: "known@example.com", SubjectID: "sub-9"})

		require.Equal(t, before, tw.store.Len())

		account, err := tw.identity.GetAccount(ctx, "known@example.com")
		require.NoError(t, err)
		require.Equal(t, "t-9", account.Attributes.TenantID)
	})
}
