package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/pkg/models"
)

const (
	DefaultGithubAPIURL = "https://api.github.com"
	githubAPIVersion    = "2022-11-28"
)

// GithubStrategy reads a repository through the GitHub REST API.
type GithubStrategy struct {
	apiURL      string
	path        string
	accessToken string
}

// NewGithubStrategy builds a strategy for req.RepoPath ("owner/name").
// An empty apiURL selects DefaultGithubAPIURL.
func NewGithubStrategy(apiURL string, req models.GithubRequest) *GithubStrategy {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultGithubAPIURL
	}
	return &GithubStrategy{
		apiURL:      strings.TrimRight(apiURL, "/"),
		path:        strings.Trim(req.RepoPath, "/"),
		accessToken: req.AccessToken,
	}
}

func (g *GithubStrategy) Name() string { return "github" }

func (g *GithubStrategy) Authorize(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}
}

func (g *GithubStrategy) repoURL() string {
	return g.apiURL + "/repos/" + g.path
}

func (g *GithubStrategy) CheckLoadability(ctx context.Context, rc *RestClient) (models.AnalysisStatus, bool) {
	parts := strings.Split(g.path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		log.Warn().Str("repo_path", g.path).Msg("github repository path must be owner/name")
		return models.StatusRepoRequestFailed, true
	}
	return "", false
}

func (g *GithubStrategy) CommitsRootURL(authorName string) string {
	return g.repoURL() + "/commits?author=" + url.QueryEscape(authorName)
}

type githubCommit struct {
	SHA string `json:"sha"`
}

func (g *GithubStrategy) CommitID(commit json.RawMessage) (string, error) {
	var c githubCommit
	if err := json.Unmarshal(commit, &c); err != nil {
		return "", fmt.Errorf("decode github commit: %w", err)
	}
	if c.SHA == "" {
		return "", fmt.Errorf("github commit without sha")
	}
	return c.SHA, nil
}

func (g *GithubStrategy) DiffURL(commit json.RawMessage) (string, error) {
	id, err := g.CommitID(commit)
	if err != nil {
		return "", err
	}
	return g.repoURL() + "/commits/" + id, nil
}

func (g *GithubStrategy) Files(diff json.RawMessage) ([]json.RawMessage, error) {
	var d struct {
		Files []json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(diff, &d); err != nil {
		return nil, fmt.Errorf("decode github commit detail: %w", err)
	}
	return d.Files, nil
}

func (g *GithubStrategy) Patch(file json.RawMessage) (string, bool, error) {
	var f struct {
		Patch *string `json:"patch"`
	}
	if err := json.Unmarshal(file, &f); err != nil {
		return "", false, fmt.Errorf("decode github file: %w", err)
	}
	if f.Patch == nil {
		return "", false, nil
	}
	return *f.Patch, true, nil
}

func (g *GithubStrategy) TotalCommitsURL() string {
	return g.repoURL() + "/commits?per_page=1&page=1"
}

func (g *GithubStrategy) PersonalCommitsURL(authorName string) string {
	return g.TotalCommitsURL() + "&author=" + url.QueryEscape(authorName)
}

type githubTree struct {
	Truncated bool `json:"truncated"`
	Tree      []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"tree"`
}

// LoadContent walks the recursive tree of the default branch. The tree
// listing is not paginated; GitHub truncates very large trees.
func (g *GithubStrategy) LoadContent(ctx context.Context, rc *RestClient) ([]models.FileRecord, error) {
	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := rc.RequestJSON(ctx, g.repoURL(), &repo); err != nil {
		return nil, err
	}

	var tree githubTree
	treeURL := g.repoURL() + "/git/trees/" + url.PathEscape(repo.DefaultBranch) + "?recursive=1"
	if err := rc.RequestJSON(ctx, treeURL, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		log.Warn().Str("repo", g.path).Int("entries", len(tree.Tree)).Msg("github tree listing truncated")
	}

	var files []models.FileRecord
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if !rc.Filter().AcceptedEntry(entry.Path, false) {
			continue
		}

		var blob struct {
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		}
		if err := rc.RequestJSON(ctx, entry.URL, &blob); err != nil {
			return nil, err
		}
		text, ok := decodeBlob(blob.Encoding, blob.Content)
		if !ok {
			log.Debug().Str("path", entry.Path).Str("encoding", blob.Encoding).Msg("skipping binary or undecodable file")
			continue
		}
		files = append(files, models.FileRecord{FilePath: entry.Path, FileContent: text})
	}
	return files, nil
}

// decodeBlob decodes provider file content. ok is false unless the
// encoding is base64 and the decoded bytes are valid UTF-8 text.
func decodeBlob(encoding, encoded string) (string, bool) {
	if encoding != "base64" {
		return "", false
	}
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(encoded)
	b, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}
