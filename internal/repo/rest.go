package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/pathfilter"
	"github.com/seanblong/repoinsight/pkg/models"
)

// ErrNoLastPage means a listing response carried no rel="last" pagination
// link, so the page-count technique cannot be used against this endpoint.
var ErrNoLastPage = errors.New("no rel=\"last\" entry in Link header")

// Strategy supplies the provider-specific pieces of the REST traversal.
type Strategy interface {
	Name() string

	// Authorize adds provider headers (token, API version) to req.
	Authorize(req *http.Request)

	CommitsRootURL(authorName string) string
	CommitID(commit json.RawMessage) (string, error)
	DiffURL(commit json.RawMessage) (string, error)
	Files(diff json.RawMessage) ([]json.RawMessage, error)
	// Patch returns the file's patch, or false for binary files.
	Patch(file json.RawMessage) (string, bool, error)

	TotalCommitsURL() string
	PersonalCommitsURL(authorName string) string

	LoadContent(ctx context.Context, rc *RestClient) ([]models.FileRecord, error)
	CheckLoadability(ctx context.Context, rc *RestClient) (models.AnalysisStatus, bool)
}

// RestClient implements Client over a paginated REST API. Provider details
// come from its Strategy.
type RestClient struct {
	strategy Strategy
	http     Doer
	filter   *pathfilter.Filter
}

// NewRestClient composes a strategy with a transport and a path filter.
func NewRestClient(strategy Strategy, doer Doer, filter *pathfilter.Filter) *RestClient {
	return &RestClient{
		strategy: strategy,
		http:     doer,
		filter:   filter,
	}
}

// Filter returns the path filter applied to content listings.
func (c *RestClient) Filter() *pathfilter.Filter { return c.filter }

// Strategy returns the provider strategy.
func (c *RestClient) Strategy() Strategy { return c.strategy }

// Get issues an authorized GET. The status code is not checked.
func (c *RestClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.strategy.Authorize(req)
	return c.http.Do(req)
}

// RequestJSON GETs rawURL and decodes the JSON body into into. 4xx and 5xx
// responses produce an *HTTPError.
func (c *RestClient) RequestJSON(ctx context.Context, rawURL string, into any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if err := checkStatus(resp, rawURL); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func checkStatus(resp *http.Response, rawURL string) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Body: strings.TrimSpace(string(body))}
}

func (c *RestClient) CheckLoadability(ctx context.Context) (models.AnalysisStatus, bool) {
	return c.strategy.CheckLoadability(ctx, c)
}

func (c *RestClient) Load(ctx context.Context, authorName string) (*models.RepoData, error) {
	data, err := c.loadRepoData(ctx, authorName)
	if err != nil {
		return nil, Classify(err)
	}
	return data, nil
}

func (c *RestClient) loadRepoData(ctx context.Context, authorName string) (*models.RepoData, error) {
	content, err := c.LoadContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	commits, err := c.LoadCommits(ctx, authorName)
	if err != nil {
		return nil, fmt.Errorf("load commits: %w", err)
	}
	return &models.RepoData{Content: content, Commits: commits}, nil
}

// LoadContent returns every accepted, decodable text file on the default branch.
func (c *RestClient) LoadContent(ctx context.Context) ([]models.FileRecord, error) {
	files, err := c.strategy.LoadContent(ctx, c)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("provider", c.strategy.Name()).Int("files", len(files)).Msg("loaded repository content")
	return files, nil
}

// LoadCommits returns the commits of authorName with one patch per non-binary
// file, in the order the provider lists commits and files.
func (c *RestClient) LoadCommits(ctx context.Context, authorName string) ([]models.CommitRecord, error) {
	var list []json.RawMessage
	if err := c.RequestJSON(ctx, c.strategy.CommitsRootURL(authorName), &list); err != nil {
		return nil, err
	}

	commits := make([]models.CommitRecord, 0, len(list))
	for _, raw := range list {
		id, err := c.strategy.CommitID(raw)
		if err != nil {
			return nil, err
		}
		diffURL, err := c.strategy.DiffURL(raw)
		if err != nil {
			return nil, err
		}

		var diff json.RawMessage
		if err := c.RequestJSON(ctx, diffURL, &diff); err != nil {
			return nil, err
		}
		files, err := c.strategy.Files(diff)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", id, err)
		}

		commit := models.CommitRecord{ID: id, Patches: make([]string, 0, len(files))}
		for _, file := range files {
			patch, ok, err := c.strategy.Patch(file)
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", id, err)
			}
			if !ok {
				continue
			}
			commit.Patches = append(commit.Patches, patch)
		}
		commits = append(commits, commit)
	}

	log.Debug().Str("provider", c.strategy.Name()).Str("author", authorName).Int("commits", len(commits)).Msg("loaded commits")
	return commits, nil
}

func (c *RestClient) LoadTotalCommitCount(ctx context.Context) (int, error) {
	n, err := c.LoadPageCount(ctx, c.strategy.TotalCommitsURL())
	if err != nil {
		return 0, countError("load total commit count", err)
	}
	return n, nil
}

func (c *RestClient) LoadPersonalCommitCount(ctx context.Context, authorName string) (int, error) {
	n, err := c.LoadPageCount(ctx, c.strategy.PersonalCommitsURL(authorName))
	if err != nil {
		return 0, countError("load personal commit count", err)
	}
	return n, nil
}

// countError classifies transport failures but keeps a missing pagination
// link as an unclassified error.
func countError(msg string, err error) error {
	if errors.Is(err, ErrNoLastPage) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return Classify(fmt.Errorf("%s: %w", msg, err))
}

// LoadPageCount requests a listing with one item per page and returns the
// page number of its rel="last" link, which equals the item count.
func (c *RestClient) LoadPageCount(ctx context.Context, rawURL string) (int, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()
	if err := checkStatus(resp, rawURL); err != nil {
		return 0, err
	}

	link := resp.Header.Get("Link")
	if link == "" {
		return 0, fmt.Errorf("%w: header absent on %s", ErrNoLastPage, rawURL)
	}
	return ParseLastPage(link)
}

// ParseLastPage extracts the page query parameter of the rel="last" entry of
// an RFC 8288 Link header.
func ParseLastPage(link string) (int, error) {
	for _, section := range strings.Split(link, ",") {
		parts := strings.Split(section, ";")
		if len(parts) < 2 {
			continue
		}

		isLast := false
		for _, param := range parts[1:] {
			if strings.TrimSpace(param) == `rel="last"` {
				isLast = true
				break
			}
		}
		if !isLast {
			continue
		}

		target := strings.TrimSpace(parts[0])
		target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
		u, err := url.Parse(target)
		if err != nil {
			return 0, fmt.Errorf("parse last link %q: %w", target, err)
		}
		page := u.Query().Get("page")
		if page == "" {
			return 0, fmt.Errorf("last link %q has no page parameter", target)
		}
		n, err := strconv.Atoi(page)
		if err != nil {
			return 0, fmt.Errorf("last link page %q: %w", page, err)
		}
		return n, nil
	}
	return 0, ErrNoLastPage
}
