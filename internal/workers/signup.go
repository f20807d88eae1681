package workers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/store"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

// SignupEvent is delivered by the identity provider when a self-service
// signup is confirmed.
type SignupEvent struct {
	Email      string `json:"email"`
	SubjectID  string `json:"subjectId"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// PostSignupSync reconciles a confirmed self-service signup into the entity
// graph. Every failure is swallowed after logging: this worker runs inside
// the identity provider's confirmation hook and must never block signup
// completion.
func (w *Workers) PostSignupSync(ctx context.Context, event SignupEvent) {
	started := time.Now()
	err := w.postSignupSync(ctx, event)
	telemetry.GetMetrics().RecordWorkerOutcome(ctx, WorkerPostSignupSync, err != nil, started)
	if err != nil {
		log.Error().Err(err).Str("email", event.Email).Msg("post-signup sync failed")
	}
}

func (w *Workers) postSignupSync(ctx context.Context, event SignupEvent) error {
	var existing models.User
	err := w.store.FindByNaturalKey(ctx, models.TypeUser, event.Email, &existing)
	if err == nil {
		// Known user: only reconcile the provider's custom attributes to
		// the stored record. No store writes.
		return w.syncIdentityAttributes(ctx, &existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	user, err := w.synthesizeDefaultUser(ctx, event)
	if err != nil {
		return err
	}

	return w.syncIdentityAttributes(ctx, user)
}

// synthesizeDefaultUser creates a user under the well-known default tenant,
// placed in the Default group with the baseline Viewer role. Every write is
// create-if-absent so concurrent signups converge without locking.
func (w *Workers) synthesizeDefaultUser(ctx context.Context, event SignupEvent) (*models.User, error) {
	group, err := w.ensureDefaultGroup(ctx)
	if err != nil {
		return nil, err
	}

	// Baseline Viewer role must be linked to the group.
	roleLink := models.NewLink(models.GroupRoleLinkKey(group.GroupID, seed.ViewerRoleID))
	if err := w.store.Create(ctx, roleLink); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return nil, err
	}

	user := models.NewUser(uuid.NewString(), seed.AccountID, seed.EnterpriseID, event.Email, event.GivenName, event.FamilyName, seed.ViewerRoleLabel)
	user.SubjectID = event.SubjectID

	if err := w.store.Create(ctx, user); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, err
		}
		// Concurrent confirmation already created the record.
		if err := w.store.FindByNaturalKey(ctx, models.TypeUser, event.Email, user); err != nil {
			return nil, err
		}
	}

	memberLink := models.NewLink(models.UserGroupLinkKey(user.UserID, group.GroupID))
	if err := w.store.Create(ctx, memberLink); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return nil, err
	}

	log.Info().
		Str("user_id", user.UserID).
		Str("email", user.Email).
		Msg("self-service user synthesized")

	return user, nil
}

// ensureDefaultGroup finds the Default group under the default tenant,
// creating it with its deterministic id when absent. The conditional write
// makes concurrent creation converge on one item.
func (w *Workers) ensureDefaultGroup(ctx context.Context) (*models.Group, error) {
	var groups []models.Group
	if err := w.store.QueryOwned(ctx, models.AccountPK(seed.AccountID), models.TypeGroup, &groups); err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].Name == seed.DefaultGroup {
			return &groups[i], nil
		}
	}

	group := models.NewGroup(seed.DefaultGroupID, seed.AccountID, seed.EnterpriseID, seed.DefaultGroup, "Self-service signups")
	if err := w.store.Create(ctx, group); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return nil, err
	}

	return group, nil
}

// syncIdentityAttributes pushes the stored record's tenant, enterprise and
// role to the identity provider's custom attributes and ensures baseline
// group membership.
func (w *Workers) syncIdentityAttributes(ctx context.Context, user *models.User) error {
	if w.identity == nil {
		return nil
	}

	err := w.identity.UpdateAttributes(ctx, user.Email, idp.Attributes{
		TenantID:     user.AccountID,
		EnterpriseID: user.EnterpriseID,
		RoleName:     user.RoleName,
	})
	if err != nil {
		return err
	}

	if w.cfg.DefaultProviderGroup != "" && user.RoleName == seed.ViewerRoleLabel {
		if err := w.identity.AddToGroup(ctx, user.Email, w.cfg.DefaultProviderGroup); err != nil {
			log.Warn().Err(err).Str("email", user.Email).Msg("failed to sync provider group membership")
		}
	}

	return nil
}
