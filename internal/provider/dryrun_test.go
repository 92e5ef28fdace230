package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// recordingProvider records the names of the invoked methods.
type recordingProvider struct {
	calls []string
}

func (r *recordingProvider) record(name string) {
	r.calls = append(r.calls, name)
}

func (r *recordingProvider) GetPRState(context.Context, string, string, int) (*PullRequestState, error) {
	r.record("GetPRState")
	return &PullRequestState{Number: 7}, nil
}

func (r *recordingProvider) ListOpenPRNumbers(context.Context, string, string) ([]int, error) {
	r.record("ListOpenPRNumbers")
	return []int{7}, nil
}

func (r *recordingProvider) ResolveTeamMembers(context.Context, string, string) ([]string, error) {
	r.record("ResolveTeamMembers")
	return []string{"fho"}, nil
}

func (r *recordingProvider) PostComment(context.Context, string, string, int, string) error {
	r.record("PostComment")
	return nil
}

func (r *recordingProvider) SetReview(context.Context, string, string, int, string, string) error {
	r.record("SetReview")
	return nil
}

func (r *recordingProvider) DismissReview(context.Context, string, string, int, int64, string) error {
	r.record("DismissReview")
	return nil
}

func (r *recordingProvider) MergePR(context.Context, string, string, int, string, string) error {
	r.record("MergePR")
	return nil
}

func TestDryRunSimulatesMutations(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	wrapped := recordingProvider{}
	dry := NewDryRun(&wrapped)

	ctx := context.Background()

	require.NoError(t, dry.PostComment(ctx, "capra", "ibex", 7, "hello"))
	require.NoError(t, dry.SetReview(ctx, "capra", "ibex", 7, ReviewTypeApprove, ""))
	require.NoError(t, dry.DismissReview(ctx, "capra", "ibex", 7, 1, "stale"))
	require.NoError(t, dry.MergePR(ctx, "capra", "ibex", 7, MergeMethodSquash, ""))

	assert.Empty(t, wrapped.calls, "mutating operations must not reach the wrapped client")
}

func TestDryRunForwardsReads(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	wrapped := recordingProvider{}
	dry := NewDryRun(&wrapped)

	ctx := context.Background()

	state, err := dry.GetPRState(ctx, "capra", "ibex", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, state.Number)

	numbers, err := dry.ListOpenPRNumbers(ctx, "capra", "ibex")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, numbers)

	members, err := dry.ResolveTeamMembers(ctx, "capra", "maintainers")
	require.NoError(t, err)
	assert.Equal(t, []string{"fho"}, members)

	assert.Equal(t, []string{"GetPRState", "ListOpenPRNumbers", "ResolveTeamMembers"}, wrapped.calls)
}
