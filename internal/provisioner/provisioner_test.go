package provisioner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name           string
		providerStatus string
		expected       Status
	}{
		{
			name:           "create complete is ready",
			providerStatus: "CREATE_COMPLETE",
			expected:       StatusReady,
		},
		{
			name:           "update complete is ready",
			providerStatus: "UPDATE_COMPLETE",
			expected:       StatusReady,
		},
		{
			name:           "delete complete is deleted",
			providerStatus: "DELETE_COMPLETE",
			expected:       StatusDeleted,
		},
		{
			name:           "create failed is failed",
			providerStatus: "CREATE_FAILED",
			expected:       StatusFailed,
		},
		{
			name:           "delete failed is failed",
			providerStatus: "DELETE_FAILED",
			expected:       StatusFailed,
		},
		{
			name:           "rollback complete is failed",
			providerStatus: "ROLLBACK_COMPLETE",
			expected:       StatusFailed,
		},
		{
			name:           "rollback in progress is failed",
			providerStatus: "ROLLBACK_FAILED",
			expected:       StatusFailed,
		},
		{
			name:           "delete in progress is deleting",
			providerStatus: "DELETE_IN_PROGRESS",
			expected:       StatusDeleting,
		},
		{
			name:           "create in progress is creating",
			providerStatus: "CREATE_IN_PROGRESS",
			expected:       StatusCreating,
		},
		{
			name:           "review in progress is creating",
			providerStatus: "REVIEW_IN_PROGRESS",
			expected:       StatusCreating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, MapStatus(tt.providerStatus))
		})
	}
}

func TestIsTransient(t *testing.T) {
	require.False(t, IsTransient(nil))
	require.True(t, IsTransient(errThrottling))
	require.False(t, IsTransient(ErrStackNotFound))
}

var errThrottling = &fakeAPIError{msg: "api error Throttling: Rate exceeded"}

type fakeAPIError struct{ msg string }

func (e *fakeAPIError) Error() string { return e.msg }
