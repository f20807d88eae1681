package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("throttled")

func TestDo(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return nil
		}, func(error) bool { return true })
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		}, func(err error) bool { return errors.Is(err, errTransient) })
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops at attempt ceiling", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return errTransient
		}, func(error) bool { return true })
		require.Error(t, err)
		require.Equal(t, maxAttempts, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		permanent := errors.New("validation failed")
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return permanent
		}, func(err error) bool { return errors.Is(err, errTransient) })
		require.ErrorIs(t, err, permanent)
		require.Equal(t, 1, calls)
	})

	t.Run("never classifier short-circuits", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return errTransient
		}, Never)
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})
}

func TestDoValue(t *testing.T) {
	t.Run("returns value on success", func(t *testing.T) {
		v, err := DoValue(context.Background(), func() (int, error) {
			return 42, nil
		}, Never)
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})

	t.Run("returns value from retried attempt", func(t *testing.T) {
		calls := 0
		v, err := DoValue(context.Background(), func() (string, error) {
			calls++
			if calls == 1 {
				return "", errTransient
			}
			return "ok", nil
		}, func(error) bool { return true })
		require.NoError(t, err)
		require.Equal(t, "ok", v)
	})
}
