package cleanup_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/CodeGachi/SyncNapse-sub001/cleanup"
)

func TestRunOnceSumsRemovedRows(t *testing.T) {
	job := cleanup.NewJob([]cleanup.Task{
		{Name: "refresh_tokens", Run: func(context.Context) (int64, error) { return 3, nil }},
		{Name: "oauth_states", Run: func(context.Context) (int64, error) { return 2, nil }},
		{Name: "token_blacklist", Run: func(context.Context) (int64, error) { return 0, nil }},
	})

	total, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
}

func TestFailingTaskDoesNotStopOthers(t *testing.T) {
	boom := errors.New("connection reset")
	ran := make(map[string]bool)

	job := cleanup.NewJob([]cleanup.Task{
		{Name: "first", Run: func(context.Context) (int64, error) {
			ran["first"] = true
			return 0, boom
		}},
		{Name: "second", Run: func(context.Context) (int64, error) {
			ran["second"] = true
			return 7, nil
		}},
	})

	total, err := job.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	require.True(t, ran["first"])
	require.True(t, ran["second"])
	require.Equal(t, int64(7), total)
}

func TestStopWithoutStart(t *testing.T) {
	job := cleanup.NewJob(nil)
	job.Stop()
	job.Stop()
}
