package models

import (
	"fmt"
	"time"
)

// AnalysisStatus is the outcome or failure reason of an analysis.
type AnalysisStatus string

const (
	StatusPending          AnalysisStatus = "PENDING"
	StatusLoadingCommits   AnalysisStatus = "LOADING_COMMITS"
	StatusPreprocessing    AnalysisStatus = "PREPROCESSING"
	StatusGeneratingReadme AnalysisStatus = "GENERATING_README"
	StatusScoring          AnalysisStatus = "SCORING"
	StatusDone             AnalysisStatus = "DONE"

	StatusRepoTokenError     AnalysisStatus = "REPO_TOKEN_ERROR"
	StatusAccessTokenInvalid AnalysisStatus = "ACCESS_TOKEN_INVALID"
	StatusRepoRequestFailed  AnalysisStatus = "REPO_REQUEST_FAILED"
	StatusRepoRequestTimeout AnalysisStatus = "REPO_REQUEST_TIMEOUT"
	StatusAnalysisFailed     AnalysisStatus = "ANALYSIS_FAILED"
)

// statusCodes follow the numeric scheme the consuming backend polls on:
// 0xx pending, 1xx processing, 200 done, anything above 200 is a failure.
var statusCodes = map[AnalysisStatus]int{
	StatusPending:            0,
	StatusLoadingCommits:     101,
	StatusPreprocessing:      102,
	StatusGeneratingReadme:   103,
	StatusScoring:            104,
	StatusDone:               200,
	StatusRepoTokenError:     401,
	StatusAccessTokenInvalid: 403,
	StatusRepoRequestFailed:  502,
	StatusRepoRequestTimeout: 504,
	StatusAnalysisFailed:     500,
}

// Code returns the numeric status code, or 500 for unknown statuses.
func (s AnalysisStatus) Code() int {
	if c, ok := statusCodes[s]; ok {
		return c
	}
	return 500
}

// IsFailure reports whether the status ends an analysis unsuccessfully.
func (s AnalysisStatus) IsFailure() bool {
	return s.Code() > 200
}

func (s AnalysisStatus) String() string {
	return string(s)
}

// AnalysisError is a classified analysis failure. It is the only error type
// a repository client lets escape to the orchestration layer.
type AnalysisError struct {
	Status AnalysisStatus
	Msg    string
	Err    error
}

// NewAnalysisError builds an AnalysisError for status wrapping err.
func NewAnalysisError(status AnalysisStatus, msg string, err error) *AnalysisError {
	return &AnalysisError{Status: status, Msg: msg, Err: err}
}

func (e *AnalysisError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Status, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Status, e.Err)
	default:
		return string(e.Status)
	}
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Progress is the externally visible state of one analysis.
type Progress struct {
	AnalysisID string         `json:"analysisId"`
	Status     AnalysisStatus `json:"status"`
	Code       int            `json:"code"`
	Percentage int            `json:"percentage"`
	Message    string         `json:"message,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
