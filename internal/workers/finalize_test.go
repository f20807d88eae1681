package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/seed"
)

func TestFinalizeAndVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("repairs the graph and records active", func(t *testing.T) {
		tw := newTestWorkers(t)

		result, err := tw.workers.FinalizeAndVerify(ctx, FinalizeRequest{
			TenantID:        seed.AccountID,
			AdminEmail:      "admin@example.com",
			AdminGivenName:  "Ada",
			AdminFamilyName: "Admin",
		})
		require.NoError(t, err)
		require.Equal(t, registry.StatusActive, result.Status)
		require.Zero(t, result.Failures)
		require.Greater(t, result.Repaired, 0)

		require.Equal(t, registry.StatusActive, tw.param(t, registry.StatusPath(seed.AccountID)))

		verifiedAt := tw.param(t, registry.VerifiedAtPath(seed.AccountID))
		_, err = time.Parse(time.RFC3339, verifiedAt)
		require.NoError(t, err)
	})

	t.Run("unrepairable checks record partial", func(t *testing.T) {
		tw := newTestWorkers(t)

		// A foreign tenant with no account record cannot be re-created by
		// the verifier.
		result, err := tw.workers.FinalizeAndVerify(ctx, FinalizeRequest{TenantID: "t-9"})
		require.NoError(t, err)
		require.Equal(t, registry.StatusPartial, result.Status)
		require.Greater(t, result.Failures, 0)

		require.Equal(t, registry.StatusPartial, tw.param(t, registry.StatusPath("t-9")))
	})

	t.Run("second run finds nothing to repair", func(t *testing.T) {
		tw := newTestWorkers(t)

		first, err := tw.workers.FinalizeAndVerify(ctx, FinalizeRequest{
			TenantID:   seed.AccountID,
			AdminEmail: "admin@example.com",
		})
		require.NoError(t, err)
		require.Greater(t, first.Repaired, 0)

		second, err := tw.workers.FinalizeAndVerify(ctx, FinalizeRequest{
			TenantID:   seed.AccountID,
			AdminEmail: "admin@example.com",
		})
		require.NoError(t, err)
		require.Equal(t, registry.StatusActive, second.Status)
		require.Zero(t, second.Repaired)
	})
}
