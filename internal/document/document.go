// Package document turns repository data into text documents and splits
// them into chunks small enough for a single completion.
package document

import (
	"fmt"
	"maps"
	"strings"

	"github.com/seanblong/repoinsight/pkg/models"
)

// Metadata keys attached to documents.
const (
	MetaFilePath = "file_path"
	MetaCommitID = "id"
	MetaChunk    = "chunk"
)

// Document is a unit of text with provenance metadata.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// FromContent builds one document per file, in input order.
func FromContent(files []models.FileRecord) []Document {
	docs := make([]Document, 0, len(files))
	for _, f := range files {
		docs = append(docs, Document{
			Text:     f.FileContent,
			Metadata: map[string]any{MetaFilePath: f.FilePath},
		})
	}
	return docs
}

// FromCommits builds one document per commit whose text is the commit's
// patches joined by newlines.
func FromCommits(commits []models.CommitRecord) []Document {
	docs := make([]Document, 0, len(commits))
	for _, c := range commits {
		docs = append(docs, Document{
			Text:     strings.Join(c.Patches, "\n"),
			Metadata: map[string]any{MetaCommitID: c.ID},
		})
	}
	return docs
}

// Splitter cuts text into ordered chunks.
type Splitter interface {
	Split(text string) ([]string, error)
}

// SourceSplitter is a Splitter that can use the path of a file to choose
// how its content is cut.
type SourceSplitter interface {
	Splitter
	SplitSource(path, text string) ([]string, error)
}

// split routes documents that carry a file path to SplitSource when s
// supports it.
func split(s Splitter, d Document) ([]string, error) {
	if ss, ok := s.(SourceSplitter); ok {
		if path, _ := d.Metadata[MetaFilePath].(string); path != "" {
			return ss.SplitSource(path, d.Text)
		}
	}
	return s.Split(d.Text)
}

// SplitDocuments splits every document and returns the chunks in document
// order. Documents with a file path go through SplitSource when s is a
// SourceSplitter. Each chunk carries a copy of its source metadata plus its
// index.
func SplitDocuments(s Splitter, docs []Document) ([]Document, error) {
	out := make([]Document, 0, len(docs))
	for i, d := range docs {
		chunks, err := split(s, d)
		if err != nil {
			return nil, fmt.Errorf("split document %d: %w", i, err)
		}
		for n, chunk := range chunks {
			meta := make(map[string]any, len(d.Metadata)+1)
			maps.Copy(meta, d.Metadata)
			meta[MetaChunk] = n
			out = append(out, Document{Text: chunk, Metadata: meta})
		}
	}
	return out, nil
}

// Texts returns the text of each document.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}
