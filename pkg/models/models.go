package models

import "time"

// AnalysisRequest identifies the repository to analyze. Implemented by
// GithubRequest, GitlabRequest and LocalRequest.
type AnalysisRequest interface {
	// Platform returns the hosting platform name ("github", "gitlab", "local").
	Platform() string
	// Author returns the commit author whose history is analyzed.
	Author() string
}

// GithubRequest targets a repository on GitHub, e.g. RepoPath "owner/name".
type GithubRequest struct {
	RepoPath    string `json:"repoPath"`
	UserName    string `json:"userName"`
	AccessToken string `json:"accessToken,omitempty"`
}

func (r GithubRequest) Platform() string { return "github" }
func (r GithubRequest) Author() string   { return r.UserName }

// GitlabRequest targets a GitLab project by numeric id.
type GitlabRequest struct {
	BaseURL      string `json:"baseUrl"`
	ProjectID    string `json:"projectId"`
	UserName     string `json:"userName"`
	PrivateToken string `json:"privateToken,omitempty"`
}

func (r GitlabRequest) Platform() string { return "gitlab" }
func (r GitlabRequest) Author() string   { return r.UserName }

// LocalRequest targets a git checkout on the local filesystem.
type LocalRequest struct {
	Path     string `json:"path"`
	UserName string `json:"userName"`
}

func (r LocalRequest) Platform() string { return "local" }
func (r LocalRequest) Author() string   { return r.UserName }

// CommitRecord is one commit with its per-file patches, in provider order.
type CommitRecord struct {
	ID      string   `json:"id"`
	Patches []string `json:"patches"`
}

// FileRecord is one decoded text file from the repository.
type FileRecord struct {
	FilePath    string `json:"file_path"`
	FileContent string `json:"file_content"`
}

// RepoData is everything loaded from a repository for one analysis.
type RepoData struct {
	Content []FileRecord   `json:"content"`
	Commits []CommitRecord `json:"commits"`
}

// CommitScore is the judgement parsed from the scoring pipeline output.
type CommitScore struct {
	Readability  int    `json:"readability"`
	Reusability  int    `json:"reusability"`
	Performance  int    `json:"performance"`
	Testability  int    `json:"testability"`
	Exception    int    `json:"exception"`
	ScoreComment string `json:"scoreComment"`
}

// Total is the rounded mean of the five criteria.
func (s CommitScore) Total() int {
	sum := s.Readability + s.Reusability + s.Performance + s.Testability + s.Exception
	return (sum + 2) / 5
}

// AnalysisResult is what a finished analysis hands back to its caller.
type AnalysisResult struct {
	AnalysisID          string      `json:"analysisId"`
	Readme              string      `json:"readme"`
	Explanation         string      `json:"explanation"`
	Score               CommitScore `json:"score"`
	TotalCommitCount    int         `json:"totalCommitCnt"`
	PersonalCommitCount int         `json:"personalCommitCnt"`
	FinishedAt          time.Time   `json:"finishedAt"`
}
