//go:build integration

package aws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stackpilot/tenantctl/internal/bootstrap"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/store"
)

const (
	testDynamoDBRegion = "us-east-1"
	testTableName      = "tenantctl-integration-control-plane"
)

// setupLocalStack starts a LocalStack container and returns a DynamoDB client
// pointed at it.
func setupLocalStack(t *testing.T, ctx context.Context) (*dynamodb.Client, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:4.9",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES": "dynamodb",
		},
		WaitingFor: wait.ForLog("Ready.").WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)

	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(testDynamoDBRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
	)
	require.NoError(t, err)

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return client, cleanup
}

// createControlPlaneTable provisions the single-table layout with both
// secondary indexes, the same way the bootstrap command does.
func createControlPlaneTable(t *testing.T, ctx context.Context, client *dynamodb.Client) {
	_, err := bootstrap.Bootstrap(ctx, bootstrap.Config{
		DynamoClient:      client,
		ControlPlaneTable: testTableName,
		SharedTable:       testTableName + "-shared",
		CleanResources:    true,
	})
	require.NoError(t, err)
}

func TestIntegration_EntityStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := setupLocalStack(t, ctx)
	defer cleanup()

	createControlPlaneTable(t, ctx, client)
	entityStore := NewEntityStore(client, testTableName)

	user := models.NewUser("usr-1", "acct-1", "ent-1", "first@example.com", "First", "User", "Administrator")

	t.Run("get before create returns not found", func(t *testing.T) {
		var out models.User
		err := entityStore.Get(ctx, models.UserKey("usr-1"), &out)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create then get round-trips the item", func(t *testing.T) {
		require.NoError(t, entityStore.Create(ctx, user))

		var out models.User
		require.NoError(t, entityStore.Get(ctx, models.UserKey("usr-1"), &out))
		require.Equal(t, user.UserID, out.UserID)
		require.Equal(t, user.Email, out.Email)
		require.Equal(t, user.RoleName, out.RoleName)
	})

	t.Run("create is conditional on absence", func(t *testing.T) {
		duplicate := models.NewUser("usr-1", "acct-1", "ent-1", "first@example.com", "Second", "Writer", "Viewer")
		err := entityStore.Create(ctx, duplicate)
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		// The original item survives the losing write.
		var out models.User
		require.NoError(t, entityStore.Get(ctx, models.UserKey("usr-1"), &out))
		require.Equal(t, "First", out.GivenName)
	})

	t.Run("update sets attributes on existing items only", func(t *testing.T) {
		require.NoError(t, entityStore.Update(ctx, models.UserKey("usr-1"), map[string]any{
			"subject_id": "sub-123",
		}))

		var out models.User
		require.NoError(t, entityStore.Get(ctx, models.UserKey("usr-1"), &out))
		require.Equal(t, "sub-123", out.SubjectID)

		err := entityStore.Update(ctx, models.UserKey("usr-absent"), map[string]any{
			"subject_id": "sub-456",
		})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("find by natural key uses the entity type index", func(t *testing.T) {
		var out models.User
		require.NoError(t, entityStore.FindByNaturalKey(ctx, models.TypeUser, "first@example.com", &out))
		require.Equal(t, "usr-1", out.UserID)

		err := entityStore.FindByNaturalKey(ctx, models.TypeUser, "nobody@example.com", &out)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		victim := models.NewUser("usr-2", "acct-1", "ent-1", "second@example.com", "Second", "User", "Viewer")
		require.NoError(t, entityStore.Create(ctx, victim))
		require.NoError(t, entityStore.Delete(ctx, models.UserKey("usr-2")))
		require.NoError(t, entityStore.Delete(ctx, models.UserKey("usr-2")))

		var out models.User
		err := entityStore.Get(ctx, models.UserKey("usr-2"), &out)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestIntegration_EntityStoreQueries(t *testing.T) {
	ctx := context.Background()
	client, cleanup := setupLocalStack(t, ctx)
	defer cleanup()

	createControlPlaneTable(t, ctx, client)
	entityStore := NewEntityStore(client, testTableName)

	// Two accounts worth of groups plus link items under one of them.
	for i := 0; i < 30; i++ {
		group := models.NewGroup(fmt.Sprintf("grp-%02d", i), "acct-1", "ent-1", fmt.Sprintf("Group %02d", i), "")
		require.NoError(t, entityStore.Create(ctx, group))
	}
	foreign := models.NewGroup("grp-other", "acct-2", "ent-1", "Foreign", "")
	require.NoError(t, entityStore.Create(ctx, foreign))

	require.NoError(t, entityStore.Create(ctx, models.NewLink(models.GroupRoleLinkKey("grp-00", "role-admin"))))
	require.NoError(t, entityStore.Create(ctx, models.NewLink(models.GroupRoleLinkKey("grp-00", "role-viewer"))))

	t.Run("query owned scopes to one account and entity type", func(t *testing.T) {
		var groups []models.Group
		require.NoError(t, entityStore.QueryOwned(ctx, models.AccountPK("acct-1"), models.TypeGroup, &groups))
		require.Len(t, groups, 30)
		for _, group := range groups {
			require.Equal(t, "acct-1", group.AccountID)
		}
	})

	t.Run("query by sort key prefix scopes the partition", func(t *testing.T) {
		var groups []models.Group
		require.NoError(t, entityStore.Query(ctx, models.AccountPK("acct-1"), models.GroupSK(""), &groups))
		require.Len(t, groups, 30)
	})

	t.Run("query without prefix returns the whole partition", func(t *testing.T) {
		var links []models.Link
		require.NoError(t, entityStore.Query(ctx, models.GroupPK("grp-00"), "", &links))
		require.Len(t, links, 2)
	})
}
