package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/rs/zerolog/log"
)

// Custom attribute names in the user pool schema.
const (
	attrTenantID     = "custom:tenant_id"
	attrEnterpriseID = "custom:enterprise_id"
	attrRole         = "custom:role"
)

// CognitoProvider is the AWS Cognito implementation of IdentityProvider.
type CognitoProvider struct {
	client *cognitoidentityprovider.Client
	poolID string
}

// NewCognitoProvider creates an identity provider bound to one user pool.
func NewCognitoProvider(client *cognitoidentityprovider.Client, poolID string) *CognitoProvider {
	return &CognitoProvider{
		client: client,
		poolID: poolID,
	}
}

// GetAccount fetches an account by email.
func (p *CognitoProvider) GetAccount(ctx context.Context, email string) (*Account, error) {
	result, err := p.client.AdminGetUser(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(email),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get identity account: %w", err)
	}

	account := &Account{
		Email:   email,
		Enabled: result.Enabled,
	}
	for _, attr := range result.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			account.SubjectID = aws.ToString(attr.Value)
		case "given_name":
			account.GivenName = aws.ToString(attr.Value)
		case "family_name":
			account.FamilyName = aws.ToString(attr.Value)
		case attrTenantID:
			account.Attributes.TenantID = aws.ToString(attr.Value)
		case attrEnterpriseID:
			account.Attributes.EnterpriseID = aws.ToString(attr.Value)
		case attrRole:
			account.Attributes.RoleName = aws.ToString(attr.Value)
		}
	}

	return account, nil
}

// CreateAccount creates the account suppressing the invitation message, then
// makes the password permanent.
func (p *CognitoProvider) CreateAccount(ctx context.Context, account Account, password string) (string, error) {
	result, err := p.client.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId:        aws.String(p.poolID),
		Username:          aws.String(account.Email),
		TemporaryPassword: aws.String(password),
		MessageAction:     types.MessageActionTypeSuppress,
		UserAttributes:    createAttributes(account),
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return "", ErrAccountExists
		}
		return "", fmt.Errorf("failed to create identity account: %w", err)
	}

	// Make the password permanent so the admin is not forced through a
	// reset on first login.
	_, err = p.client.AdminSetUserPassword(ctx, &cognitoidentityprovider.AdminSetUserPasswordInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(account.Email),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to set permanent password: %w", err)
	}

	var subjectID string
	if result.User != nil {
		for _, attr := range result.User.Attributes {
			if aws.ToString(attr.Name) == "sub" {
				subjectID = aws.ToString(attr.Value)
			}
		}
	}

	log.Info().
		Str("email", account.Email).
		Str("subject_id", subjectID).
		Msg("identity account created")

	return subjectID, nil
}

// UpdateAttributes overwrites the custom attributes for an email.
func (p *CognitoProvider) UpdateAttributes(ctx context.Context, email string, attrs Attributes) error {
	_, err := p.client.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String(attrTenantID), Value: aws.String(attrs.TenantID)},
			{Name: aws.String(attrEnterpriseID), Value: aws.String(attrs.EnterpriseID)},
			{Name: aws.String(attrRole), Value: aws.String(attrs.RoleName)},
		},
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update identity attributes: %w", err)
	}

	return nil
}

// AddToGroup adds the account to a provider group.
func (p *CognitoProvider) AddToGroup(ctx context.Context, email, group string) error {
	_, err := p.client.AdminAddUserToGroup(ctx, &cognitoidentityprovider.AdminAddUserToGroupInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(email),
		GroupName:  aws.String(group),
	})
	if err != nil {
		return fmt.Errorf("failed to add identity to group %s: %w", group, err)
	}
	return nil
}

// RemoveFromGroup removes the account from a provider group.
func (p *CognitoProvider) RemoveFromGroup(ctx context.Context, email, group string) error {
	_, err := p.client.AdminRemoveUserFromGroup(ctx, &cognitoidentityprovider.AdminRemoveUserFromGroupInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(email),
		GroupName:  aws.String(group),
	})
	if err != nil {
		return fmt.Errorf("failed to remove identity from group %s: %w", group, err)
	}
	return nil
}

// ListGroups returns the account's provider group names.
func (p *CognitoProvider) ListGroups(ctx context.Context, email string) ([]string, error) {
	var groups []string

	paginator := cognitoidentityprovider.NewAdminListGroupsForUserPaginator(p.client, &cognitoidentityprovider.AdminListGroupsForUserInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(email),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list identity groups: %w", err)
		}
		for _, group := range page.Groups {
			groups = append(groups, aws.ToString(group.GroupName))
		}
	}

	return groups, nil
}

func createAttributes(account Account) []types.AttributeType {
	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(account.Email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
		{Name: aws.String(attrTenantID), Value: aws.String(account.Attributes.TenantID)},
		{Name: aws.String(attrEnterpriseID), Value: aws.String(account.Attributes.EnterpriseID)},
		{Name: aws.String(attrRole), Value: aws.String(account.Attributes.RoleName)},
	}
	if account.GivenName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("given_name"), Value: aws.String(account.GivenName)})
	}
	if account.FamilyName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("family_name"), Value: aws.String(account.FamilyName)})
	}
	return attrs
}
