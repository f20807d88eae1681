package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/notify"
	"github.com/stackpilot/tenantctl/internal/retry"
	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/store"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

// Admin identity creation statuses.
const (
	AdminStatusCreated       = "CREATED"
	AdminStatusAlreadyExists = "ALREADY_EXISTS"
)

// AdminRequest is the input to the create-admin-identity worker.
type AdminRequest struct {
	TenantID     string `json:"tenantId"`
	EnterpriseID string `json:"enterpriseId"`
	UserID       string `json:"userId,omitempty"`
	Email        string `json:"email"`
	GivenName    string `json:"givenName"`
	FamilyName   string `json:"familyName"`
	RoleName     string `json:"roleName,omitempty"`
}

// AdminResult is the output of the create-admin-identity worker.
type AdminResult struct {
	Created   bool   `json:"created"`
	Status    string `json:"status"`
	UserID    string `json:"userId"`
	SubjectID string `json:"subjectId,omitempty"`
}

// CreateAdminIdentity creates the tenant's administrative user across the
// identity provider and the key-value store. The store write is conditional
// so concurrent invocations cannot double-create; everything after it is
// best-effort.
func (w *Workers) CreateAdminIdentity(ctx context.Context, req AdminRequest) (result *AdminResult, err error) {
	started := time.Now()
	defer func() {
		telemetry.GetMetrics().RecordWorkerOutcome(ctx, WorkerCreateAdmin, err != nil, started)
	}()

	if req.RoleName == "" {
		req.RoleName = seed.AdminRoleLabel
	}

	// Idempotency check first: an existing record by email ends the worker
	// without further writes.
	var existing models.User
	err = retry.Do(ctx, func() error {
		return w.store.FindByNaturalKey(ctx, models.TypeUser, req.Email, &existing)
	}, store.IsTransient)
	if err == nil {
		log.Info().Str("email", req.Email).Str("user_id", existing.UserID).Msg("admin identity already exists")
		return &AdminResult{
			Created:   false,
			Status:    AdminStatusAlreadyExists,
			UserID:    existing.UserID,
			SubjectID: existing.SubjectID,
		}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	subjectID, password, err := w.ensureIdentityAccount(ctx, req)
	if err != nil {
		return nil, err
	}

	userID := req.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	user := models.NewUser(userID, req.TenantID, req.EnterpriseID, req.Email, req.GivenName, req.FamilyName, req.RoleName)
	user.SubjectID = subjectID

	if err := w.store.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// A concurrent invocation won the conditional write; report the
			// winner's record, not the ids generated here.
			var winner models.User
			if err := w.store.FindByNaturalKey(ctx, models.TypeUser, req.Email, &winner); err != nil {
				return nil, err
			}
			return &AdminResult{Created: false, Status: AdminStatusAlreadyExists, UserID: winner.UserID, SubjectID: winner.SubjectID}, nil
		}
		return nil, err
	}

	w.linkAdminGroup(ctx, req.TenantID, userID)
	w.linkDefaultWorkstream(ctx, req.TenantID, userID)

	if password != "" {
		w.sendCredentials(ctx, req.Email, password)
	}

	log.Info().
		Str("tenant_id", req.TenantID).
		Str("user_id", userID).
		Str("email", req.Email).
		Msg("admin identity created")

	return &AdminResult{Created: true, Status: AdminStatusCreated, UserID: userID, SubjectID: subjectID}, nil
}

// ensureIdentityAccount creates or reuses the identity-provider account.
// Returns the subject id and, for freshly created accounts, the generated
// password. With no pool configured both are empty.
func (w *Workers) ensureIdentityAccount(ctx context.Context, req AdminRequest) (string, string, error) {
	if w.identity == nil {
		return "", "", nil
	}

	attrs := idp.Attributes{
		TenantID:     req.TenantID,
		EnterpriseID: req.EnterpriseID,
		RoleName:     req.RoleName,
	}

	var password string
	account, err := w.identity.GetAccount(ctx, req.Email)
	switch {
	case err == nil:
		// Account exists; reconcile its attributes to this tenant.
		if err := w.identity.UpdateAttributes(ctx, req.Email, attrs); err != nil {
			return "", "", err
		}
	case errors.Is(err, idp.ErrAccountNotFound):
		password = generatePassword()
		subjectID, err := w.identity.CreateAccount(ctx, idp.Account{
			Email:      req.Email,
			GivenName:  req.GivenName,
			FamilyName: req.FamilyName,
			Attributes: attrs,
		}, password)
		if err != nil {
			if !errors.Is(err, idp.ErrAccountExists) {
				return "", "", err
			}
			// Lost a race with a concurrent invocation; read the winner.
			account, err = w.identity.GetAccount(ctx, req.Email)
			if err != nil {
				return "", "", err
			}
			password = ""
		} else {
			account = &idp.Account{SubjectID: subjectID}
		}
	default:
		return "", "", err
	}

	// Provider group membership is non-critical; log and continue.
	if w.cfg.AdminProviderGroup != "" {
		if err := w.identity.AddToGroup(ctx, req.Email, w.cfg.AdminProviderGroup); err != nil {
			log.Warn().Err(err).Str("email", req.Email).Str("group", w.cfg.AdminProviderGroup).Msg("failed to add identity to provider group")
		}
	}

	return account.SubjectID, password, nil
}

// linkAdminGroup writes the User↔Group link for the tenant's administrative
// group when one exists. An already-linked conflict is silently tolerated.
func (w *Workers) linkAdminGroup(ctx context.Context, tenantID, userID string) {
	var groups []models.Group
	if err := w.store.QueryOwned(ctx, models.AccountPK(tenantID), models.TypeGroup, &groups); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to query tenant groups")
		return
	}

	for _, group := range groups {
		if group.Name != seed.AdminGroupName {
			continue
		}
		link := models.NewLink(models.UserGroupLinkKey(userID, group.GroupID))
		if err := w.store.Create(ctx, link); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			log.Warn().Err(err).Str("group_id", group.GroupID).Msg("failed to link admin user to group")
		}
		return
	}

	log.Debug().Str("tenant_id", tenantID).Msg("no administrative group found for tenant")
}

// linkDefaultWorkstream writes the User↔Workstream link for the tenant's
// default workstream when one exists. Best-effort, same as linkAdminGroup.
func (w *Workers) linkDefaultWorkstream(ctx context.Context, tenantID, userID string) {
	var workstreams []models.Workstream
	if err := w.store.QueryOwned(ctx, models.AccountPK(tenantID), models.TypeWorkstream, &workstreams); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to query tenant workstreams")
		return
	}

	for _, workstream := range workstreams {
		if workstream.Name != seed.WorkstreamName {
			continue
		}
		link := models.NewLink(models.UserWorkstreamLinkKey(userID, workstream.WorkstreamID))
		if err := w.store.Create(ctx, link); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			log.Warn().Err(err).Str("workstream_id", workstream.WorkstreamID).Msg("failed to link admin user to workstream")
		}
		return
	}

	log.Debug().Str("tenant_id", tenantID).Msg("no default workstream found for tenant")
}

// sendCredentials delivers the one-time credential message. Disabled by the
// feature flag; failures are logged and never propagated.
func (w *Workers) sendCredentials(ctx context.Context, email, password string) {
	if !w.cfg.SendCredentials || w.notifier == nil {
		return
	}

	msg := notify.Message{
		To:      email,
		Subject: "Your administrator account",
		Body:    fmt.Sprintf("Your administrator account is ready. Sign in with this one-time credential: %s", password),
	}
	if err := w.notifier.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("failed to send credential notification")
	}
}

// generatePassword returns a random password satisfying the provider's
// complexity classes.
func generatePassword() string {
	return "Tp1!" + uuid.NewString()
}
