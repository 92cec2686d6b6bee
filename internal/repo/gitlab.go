package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/pkg/models"
)

// GitlabStrategy reads a project through the GitLab v4 REST API.
type GitlabStrategy struct {
	baseURL      string
	projectID    string
	privateToken string
}

func NewGitlabStrategy(req models.GitlabRequest) *GitlabStrategy {
	return &GitlabStrategy{
		baseURL:      strings.TrimRight(req.BaseURL, "/"),
		projectID:    req.ProjectID,
		privateToken: req.PrivateToken,
	}
}

func (g *GitlabStrategy) Name() string { return "gitlab" }

func (g *GitlabStrategy) Authorize(req *http.Request) {
	if g.privateToken != "" {
		req.Header.Set("PRIVATE-TOKEN", g.privateToken)
	}
}

func (g *GitlabStrategy) projectURL() string {
	return g.baseURL + "/api/v4/projects/" + url.PathEscape(g.projectID)
}

func (g *GitlabStrategy) CheckLoadability(ctx context.Context, rc *RestClient) (models.AnalysisStatus, bool) {
	u, err := url.Parse(g.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" || strings.TrimSpace(g.projectID) == "" {
		log.Warn().Str("base_url", g.baseURL).Str("project_id", g.projectID).Msg("invalid gitlab project reference")
		return models.StatusRepoRequestFailed, true
	}
	return "", false
}

func (g *GitlabStrategy) CommitsRootURL(authorName string) string {
	return g.projectURL() + "/repository/commits?author=" + url.QueryEscape(authorName)
}

func (g *GitlabStrategy) CommitID(commit json.RawMessage) (string, error) {
	var c struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(commit, &c); err != nil {
		return "", fmt.Errorf("decode gitlab commit: %w", err)
	}
	if c.ID == "" {
		return "", fmt.Errorf("gitlab commit without id")
	}
	return c.ID, nil
}

func (g *GitlabStrategy) DiffURL(commit json.RawMessage) (string, error) {
	id, err := g.CommitID(commit)
	if err != nil {
		return "", err
	}
	return g.projectURL() + "/repository/commits/" + id + "/diff", nil
}

// Files returns the diff array itself; GitLab lists file diffs at the top level.
func (g *GitlabStrategy) Files(diff json.RawMessage) ([]json.RawMessage, error) {
	var files []json.RawMessage
	if err := json.Unmarshal(diff, &files); err != nil {
		return nil, fmt.Errorf("decode gitlab diff: %w", err)
	}
	return files, nil
}

// Patch returns the file's diff. GitLab reports binary files with an empty
// diff, which is skipped.
func (g *GitlabStrategy) Patch(file json.RawMessage) (string, bool, error) {
	var f struct {
		Diff *string `json:"diff"`
	}
	if err := json.Unmarshal(file, &f); err != nil {
		return "", false, fmt.Errorf("decode gitlab file diff: %w", err)
	}
	if f.Diff == nil || *f.Diff == "" {
		return "", false, nil
	}
	return *f.Diff, true, nil
}

func (g *GitlabStrategy) TotalCommitsURL() string {
	return g.projectURL() + "/repository/commits?per_page=1&page=1"
}

func (g *GitlabStrategy) PersonalCommitsURL(authorName string) string {
	return g.TotalCommitsURL() + "&author=" + url.QueryEscape(authorName)
}

// LoadContent lists the default branch tree (first 100 entries; the listing
// is not paginated) and fetches each accepted blob.
func (g *GitlabStrategy) LoadContent(ctx context.Context, rc *RestClient) ([]models.FileRecord, error) {
	var project struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := rc.RequestJSON(ctx, g.projectURL(), &project); err != nil {
		return nil, err
	}
	ref := url.QueryEscape(project.DefaultBranch)

	var tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	}
	treeURL := g.projectURL() + "/repository/tree?recursive=true&per_page=100&ref=" + ref
	if err := rc.RequestJSON(ctx, treeURL, &tree); err != nil {
		return nil, err
	}

	var files []models.FileRecord
	for _, entry := range tree {
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
		fileURL := g.projectURL() + "/repository/files/" + url.PathEscape(entry.Path) + "?ref=" + ref
		if err := rc.RequestJSON(ctx, fileURL, &blob); err != nil {
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
