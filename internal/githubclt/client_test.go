package githubclt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergetrain/internal/retryerr"
)

func TestWrapRetryableErrorsGraphql(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	t.Cleanup(srv.Close)

	clt := Client{
		logger:     zap.L(),
		graphQLClt: githubv4.NewEnterpriseClient(srv.URL, srv.Client()),
	}

	decision, err := clt.reviewDecision(context.Background(), "test", "test", 123)
	require.Error(t, err)
	assert.Empty(t, decision)

	var retryableErr *retryerr.RetryableError
	assert.ErrorAs(t, err, &retryableErr)
}

func TestWrapRetryableErrorsGraphqlWithNonStatusErr(t *testing.T) {
	err := errors.New("error")
	wrappedErr := (&Client{}).wrapGraphQLRetryableErrors(err)
	assert.Equal(t, err, wrappedErr)
}

func TestResolveTeamMembersServedFromCache(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orgs/capra/teams/maintainers/members", r.URL.Path)
		requests++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"login": "fho"}, {"login": "alice"}]`))
	}))

	t.Cleanup(srv.Close)

	restClt := github.NewClient(srv.Client())
	baseURL, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	restClt.BaseURL = baseURL

	clt := Client{
		logger:      zap.L(),
		restClt:     restClt,
		teamMembers: map[string]teamMembersCacheEntry{},
	}

	members, err := clt.ResolveTeamMembers(context.Background(), "capra", "maintainers")
	require.NoError(t, err)
	assert.Equal(t, []string{"fho", "alice"}, members)

	members, err = clt.ResolveTeamMembers(context.Background(), "capra", "maintainers")
	require.NoError(t, err)
	assert.Equal(t, []string{"fho", "alice"}, members)

	assert.Equal(t, 1, requests, "second resolution must be served from the cache")
}
