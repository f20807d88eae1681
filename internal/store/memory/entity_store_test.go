package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/store"
)

func TestEntityStore_CreateGet(t *testing.T) {
	t.Run("create then get round trips", func(t *testing.T) {
		st := NewEntityStore()
		ctx := context.Background()

		account := models.NewAccount("acct-1", "Acme", models.IsolationDedicated)
		require.NoError(t, st.Create(ctx, account))

		var got models.Account
		require.NoError(t, st.Get(ctx, models.AccountKey("acct-1"), &got))
		require.Equal(t, "Acme", got.Name)
		require.Equal(t, models.IsolationDedicated, got.Isolation)
	})

	t.Run("create duplicate returns ErrAlreadyExists", func(t *testing.T) {
		st := NewEntityStore()
		ctx := context.Background()

		account := models.NewAccount("acct-1", "Acme", models.IsolationShared)
		require.NoError(t, st.Create(ctx, account))
		require.ErrorIs(t, st.Create(ctx, account), store.ErrAlreadyExists)
	})

	t.Run("get missing item returns ErrNotFound", func(t *testing.T) {
		st := NewEntityStore()

		var got models.Account
		err := st.Get(context.Background(), models.AccountKey("missing"), &got)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestEntityStore_Update(t *testing.T) {
	t.Run("updates existing attributes", func(t *testing.T) {
		st := NewEntityStore()
		ctx := context.Background()

		user := models.NewUser("usr-1", "acct-1", "ent-1", "a@example.com", "Ada", "Lovelace", "admin")
		require.NoError(t, st.Create(ctx, user))

		require.NoError(t, st.Update(ctx, models.UserKey("usr-1"), map[string]any{
			"subject_id": "sub-123",
		}))

		var got models.User
		require.NoError(t, st.Get(ctx, models.UserKey("usr-1"), &got))
		require.Equal(t, "sub-123", got.SubjectID)
		require.Equal(t, "a@example.com", got.Email)
	})

	t.Run("updating missing item returns ErrNotFound", func(t *testing.T) {
		st := NewEntityStore()
		err := st.Update(context.Background(), models.UserKey("missing"), map[string]any{"status": "active"})
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestEntityStore_Query(t *testing.T) {
	st := NewEntityStore()
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, models.NewGroup("grp-1", "acct-1", "ent-1", "Admins", "")))
	require.NoError(t, st.Create(ctx, models.NewGroup("grp-2", "acct-1", "ent-1", "Default", "")))
	require.NoError(t, st.Create(ctx, models.NewWorkstream("ws-1", "acct-1", "ent-1", "General")))

	t.Run("query by sort key prefix", func(t *testing.T) {
		var groups []models.Group
		require.NoError(t, st.Query(ctx, models.AccountPK("acct-1"), "GROUP#", &groups))
		require.Len(t, groups, 2)
	})

	t.Run("query owned by entity type", func(t *testing.T) {
		var workstreams []models.Workstream
		require.NoError(t, st.QueryOwned(ctx, models.AccountPK("acct-1"), models.TypeWorkstream, &workstreams))
		require.Len(t, workstreams, 1)
		require.Equal(t, "General", workstreams[0].Name)
	})
}

func TestEntityStore_FindByNaturalKey(t *testing.T) {
	st := NewEntityStore()
	ctx := context.Background()

	user := models.NewUser("usr-1", "acct-1", "ent-1", "ada@example.com", "Ada", "Lovelace", "admin")
	require.NoError(t, st.Create(ctx, user))

	t.Run("finds user by email", func(t *testing.T) {
		var got models.User
		require.NoError(t, st.FindByNaturalKey(ctx, models.TypeUser, "ada@example.com", &got))
		require.Equal(t, "usr-1", got.UserID)
	})

	t.Run("missing natural key returns ErrNotFound", func(t *testing.T) {
		var got models.User
		err := st.FindByNaturalKey(ctx, models.TypeUser, "nobody@example.com", &got)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestEntityStore_Delete(t *testing.T) {
	st := NewEntityStore()
	ctx := context.Background()

	link := models.NewLink(models.UserGroupLinkKey("usr-1", "grp-1"))
	require.NoError(t, st.Create(ctx, link))
	require.NoError(t, st.Delete(ctx, link.Key))

	var got models.Link
	require.ErrorIs(t, st.Get(ctx, link.Key, &got), store.ErrNotFound)

	// deleting again is a no-op
	require.NoError(t, st.Delete(ctx, link.Key))
}
