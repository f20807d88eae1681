package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Config holds configuration for bootstrapping environment infrastructure.
type Config struct {
	DynamoClient *dynamodb.Client

	// ControlPlaneTable is the single-table entity store.
	ControlPlaneTable string

	// SharedTable is the table shared tenants register into.
	SharedTable string

	// CleanResources controls whether to delete existing tables before
	// creating. Set to false to preserve data across restarts.
	CleanResources bool
}

// Resources holds identifiers for created infrastructure.
type Resources struct {
	ControlPlaneTable string
	SharedTable       string
}
