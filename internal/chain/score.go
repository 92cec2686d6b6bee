package chain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/seanblong/repoinsight/pkg/models"
)

// ErrInvalidScore is returned when the commit pipeline output is not a
// complete judgement object.
var ErrInvalidScore = errors.New("invalid score output")

type judgement struct {
	Explanation *string          `json:"explanation"`
	Score       *json.RawMessage `json:"score"`
}

// Bounds of every score field.
const (
	MinScore = 0
	MaxScore = 100
)

type scoreFields struct {
	Readability  *int    `json:"readability"`
	Reusability  *int    `json:"reusability"`
	Performance  *int    `json:"performance"`
	Testability  *int    `json:"testability"`
	Exception    *int    `json:"exception"`
	ScoreComment *string `json:"scoreComment"`
}

// ParseScore decodes the commit pipeline's JSON answer. The object may be
// wrapped in a markdown code fence. Every score field must be present,
// integral and within [MinScore, MaxScore].
func ParseScore(output string) (string, models.CommitScore, error) {
	var score models.CommitScore

	raw := stripFence(output)
	var j judgement
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return "", score, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	if j.Explanation == nil {
		return "", score, fmt.Errorf("%w: missing explanation", ErrInvalidScore)
	}
	if j.Score == nil || bytes.Equal(bytes.TrimSpace(*j.Score), []byte("null")) {
		return "", score, fmt.Errorf("%w: missing score", ErrInvalidScore)
	}

	var f scoreFields
	if err := json.Unmarshal(*j.Score, &f); err != nil {
		return "", score, fmt.Errorf("%w: score: %v", ErrInvalidScore, err)
	}
	fields := []struct {
		name string
		v    *int
		dst  *int
	}{
		{"readability", f.Readability, &score.Readability},
		{"reusability", f.Reusability, &score.Reusability},
		{"performance", f.Performance, &score.Performance},
		{"testability", f.Testability, &score.Testability},
		{"exception", f.Exception, &score.Exception},
	}
	for _, fld := range fields {
		if fld.v == nil {
			return "", score, fmt.Errorf("%w: missing score.%s", ErrInvalidScore, fld.name)
		}
		if *fld.v < MinScore || *fld.v > MaxScore {
			return "", score, fmt.Errorf("%w: score.%s %d out of range", ErrInvalidScore, fld.name, *fld.v)
		}
		*fld.dst = *fld.v
	}
	if f.ScoreComment == nil {
		return "", score, fmt.Errorf("%w: missing score.scoreComment", ErrInvalidScore)
	}
	score.ScoreComment = *f.ScoreComment

	return *j.Explanation, score, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
