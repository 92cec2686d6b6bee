package repo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/pathfilter"
	"github.com/seanblong/repoinsight/pkg/models"
)

// Client loads file contents and commit history from one repository.
type Client interface {
	// CheckLoadability reports a reason the repository cannot be analyzed.
	// found is false when analysis should proceed.
	CheckLoadability(ctx context.Context) (reason models.AnalysisStatus, found bool)

	// Load fetches repository content and the commits written by authorName.
	// Any returned error is a *models.AnalysisError, except cancellation by
	// the caller, which is returned unclassified and satisfies
	// errors.Is(err, context.Canceled).
	Load(ctx context.Context, authorName string) (*models.RepoData, error)

	LoadTotalCommitCount(ctx context.Context) (int, error)
	LoadPersonalCommitCount(ctx context.Context, authorName string) (int, error)
}

// HTTPError is returned by the GET primitive for 4xx and 5xx responses.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

var httpStatusToAnalysisStatus = map[int]models.AnalysisStatus{
	http.StatusUnauthorized: models.StatusRepoTokenError,
	http.StatusForbidden:    models.StatusAccessTokenInvalid,
}

// Classify translates an error from below the client boundary into a
// *models.AnalysisError. Cancellation by the caller is passed through.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var he *HTTPError
	if errors.As(err, &he) {
		if status, ok := httpStatusToAnalysisStatus[he.StatusCode]; ok {
			return models.NewAnalysisError(status, "", err)
		}
		log.Error().Err(err).Int("status", he.StatusCode).Str("body", he.Body).Msg("repository request failed")
		return models.NewAnalysisError(models.StatusRepoRequestFailed, "", err)
	}

	if isTimeout(err) {
		return models.NewAnalysisError(models.StatusRepoRequestTimeout, "", err)
	}

	log.Error().Err(err).Msg("repository request failed")
	return models.NewAnalysisError(models.StatusRepoRequestFailed, "", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Doer is the transport used by REST clients; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures clients built by NewClient.
type Options struct {
	HTTPClient   Doer
	Timeout      time.Duration
	GithubAPIURL string
	Filter       *pathfilter.Filter
}

// NewClient returns the Client for the request's platform.
func NewClient(req models.AnalysisRequest, opts Options) (Client, error) {
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.Filter == nil {
		opts.Filter = pathfilter.Default()
	}

	switch r := req.(type) {
	case models.GithubRequest:
		return NewRestClient(NewGithubStrategy(opts.GithubAPIURL, r), opts.HTTPClient, opts.Filter), nil
	case *models.GithubRequest:
		return NewRestClient(NewGithubStrategy(opts.GithubAPIURL, *r), opts.HTTPClient, opts.Filter), nil
	case models.GitlabRequest:
		return NewRestClient(NewGitlabStrategy(r), opts.HTTPClient, opts.Filter), nil
	case *models.GitlabRequest:
		return NewRestClient(NewGitlabStrategy(*r), opts.HTTPClient, opts.Filter), nil
	case models.LocalRequest:
		return NewLocalClient(r.Path, opts.Filter), nil
	case *models.LocalRequest:
		return NewLocalClient(r.Path, opts.Filter), nil
	default:
		return nil, fmt.Errorf("unsupported analysis request: %T", req)
	}
}
