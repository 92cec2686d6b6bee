package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/pathfilter"
	"github.com/seanblong/repoinsight/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// LocalClient reads a git working copy on disk. Content comes from the
// working tree, commits from the history reachable from HEAD.
type LocalClient struct {
	Root       string
	Filter     *pathfilter.Filter
	Walker     FileSystemWalker
	FileReader FileReader
}

func NewLocalClient(root string, filter *pathfilter.Filter) *LocalClient {
	return &LocalClient{
		Root:       root,
		Filter:     filter,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

func (c *LocalClient) open() (*git.Repository, error) {
	return git.PlainOpen(c.Root)
}

func (c *LocalClient) CheckLoadability(ctx context.Context) (models.AnalysisStatus, bool) {
	if _, err := c.open(); err != nil {
		log.Warn().Err(err).Str("root", c.Root).Msg("not a git repository")
		return models.StatusRepoRequestFailed, true
	}
	return "", false
}

func (c *LocalClient) Load(ctx context.Context, authorName string) (*models.RepoData, error) {
	content, err := c.LoadContent(ctx)
	if err != nil {
		return nil, localError("load content", err)
	}
	commits, err := c.LoadCommits(ctx, authorName)
	if err != nil {
		return nil, localError("load commits", err)
	}
	return &models.RepoData{Content: content, Commits: commits}, nil
}

func localError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Classify(err)
	}
	return models.NewAnalysisError(models.StatusRepoRequestFailed, msg, err)
}

// LoadContent walks the working tree, skipping .git, and returns every
// accepted UTF-8 file with a slash-separated path relative to Root.
func (c *LocalClient) LoadContent(ctx context.Context) ([]models.FileRecord, error) {
	var files []models.FileRecord
	err := c.Walker.Walk(c.Root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if de != nil && de.IsDir() {
				if de.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(c.Root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if strings.HasPrefix(rel, ".git/") {
				return nil
			}
			if !c.Filter.AcceptedEntry(rel, false) {
				return nil
			}

			b, err := c.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}
			if !utf8.Valid(b) {
				log.Debug().Str("path", rel).Msg("skipping binary file")
				return nil
			}
			files = append(files, models.FileRecord{FilePath: rel, FileContent: string(b)})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func authoredBy(commit *object.Commit, authorName string) bool {
	return commit.Author.Name == authorName || strings.EqualFold(commit.Author.Email, authorName)
}

// LoadCommits returns commits by authorName, newest first, with one unified
// patch per changed text file.
func (c *LocalClient) LoadCommits(ctx context.Context, authorName string) ([]models.CommitRecord, error) {
	repository, err := c.open()
	if err != nil {
		return nil, err
	}
	iter, err := repository.Log(&git.LogOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []models.CommitRecord
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !authoredBy(commit, authorName) {
			return nil
		}
		patches, err := commitPatches(ctx, commit)
		if err != nil {
			return fmt.Errorf("commit %s: %w", commit.Hash, err)
		}
		commits = append(commits, models.CommitRecord{ID: commit.Hash.String(), Patches: patches})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

func commitPatches(ctx context.Context, commit *object.Commit) ([]string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	parentTree := &object.Tree{}
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	patch, err := parentTree.PatchContext(ctx, tree)
	if err != nil {
		return nil, err
	}

	patches := make([]string, 0, len(patch.FilePatches()))
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			continue
		}
		text, err := encodeFilePatch(fp)
		if err != nil {
			return nil, err
		}
		patches = append(patches, text)
	}
	return patches, nil
}

type singleFilePatch struct {
	fp fdiff.FilePatch
}

func (p singleFilePatch) FilePatches() []fdiff.FilePatch { return []fdiff.FilePatch{p.fp} }
func (p singleFilePatch) Message() string                { return "" }

// encodeFilePatch renders fp as hunks only, matching the per-file patch text
// hosted providers return.
func encodeFilePatch(fp fdiff.FilePatch) (string, error) {
	var sb strings.Builder
	if err := fdiff.NewUnifiedEncoder(&sb, fdiff.DefaultContextLines).Encode(singleFilePatch{fp: fp}); err != nil {
		return "", err
	}
	text := sb.String()
	if i := strings.Index(text, "@@ "); i >= 0 {
		text = text[i:]
	}
	return strings.TrimSuffix(text, "\n"), nil
}

func (c *LocalClient) countCommits(ctx context.Context, keep func(*object.Commit) bool) (int, error) {
	repository, err := c.open()
	if err != nil {
		return 0, localError("open repository", err)
	}
	iter, err := repository.Log(&git.LogOptions{})
	if err != nil {
		return 0, localError("read history", err)
	}
	defer iter.Close()

	n := 0
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if keep(commit) {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, localError("count commits", err)
	}
	return n, nil
}

func (c *LocalClient) LoadTotalCommitCount(ctx context.Context) (int, error) {
	return c.countCommits(ctx, func(*object.Commit) bool { return true })
}

func (c *LocalClient) LoadPersonalCommitCount(ctx context.Context, authorName string) (int, error) {
	return c.countCommits(ctx, func(commit *object.Commit) bool { return authoredBy(commit, authorName) })
}
