package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gomantics/chunkx"
	"github.com/gomantics/chunkx/languages"
	"github.com/rs/zerolog/log"
)

const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, from paragraph breaks down to
// single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits on the coarsest separator that occurs in the
// text, recursing into pieces that are still longer than ChunkSize, then
// merges adjacent pieces back up to ChunkSize with ChunkOverlap characters
// of shared context. Lengths are counted in runes.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewRecursiveSplitter validates size and overlap.
func NewRecursiveSplitter(size, overlap int) (*RecursiveSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &RecursiveSplitter{ChunkSize: size, ChunkOverlap: overlap, Separators: DefaultSeparators}, nil
}

func (s *RecursiveSplitter) Split(text string) ([]string, error) {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps), nil
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func (s *RecursiveSplitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	for _, p := range strings.Split(text, sep) {
		if p != "" {
			pieces = append(pieces, p)
		}
	}

	var out, good []string
	for _, p := range pieces {
		if runeLen(p) < s.ChunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, sep)...)
	}
	return out
}

// merge joins pieces into chunks of at most ChunkSize runes, carrying up to
// ChunkOverlap runes of trailing pieces into the next chunk.
func (s *RecursiveSplitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		chunks  []string
		current []string
		total   int
	)
	joined := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+n+joined() > s.ChunkSize {
			if total > s.ChunkSize {
				log.Warn().Int("size", total).Int("chunk_size", s.ChunkSize).Msg("created a chunk longer than the configured size")
			}
			if len(current) > 0 {
				if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
					chunks = append(chunks, chunk)
				}
				for total > s.ChunkOverlap || (total > 0 && total+n+joined() > s.ChunkSize) {
					drop := runeLen(current[0])
					if len(current) > 1 {
						drop += sepLen
					}
					total -= drop
					current = current[1:]
				}
			}
		}
		total += n + joined()
		current = append(current, p)
	}
	if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// SyntaxSplitter chunks source code along syntax boundaries with chunkx.
// The language comes from the file extension; text in a language chunkx
// cannot parse, or with no path at all, goes to Fallback.
type SyntaxSplitter struct {
	MaxSize  int
	Fallback Splitter
	chunker  chunkx.Chunker
}

// NewSyntaxSplitter returns a SyntaxSplitter whose chunks hold at most
// maxSize tokens.
func NewSyntaxSplitter(maxSize int, fallback Splitter) *SyntaxSplitter {
	return &SyntaxSplitter{
		MaxSize:  maxSize,
		Fallback: fallback,
		chunker:  chunkx.NewChunker(),
	}
}

// Split has no path to detect a language from, so it always falls back.
func (s *SyntaxSplitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return s.fallback(text)
}

// SplitSource chunks the content of the file at path.
func (s *SyntaxSplitter) SplitSource(path, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	lang, ok := Language(path)
	if !ok {
		return s.fallback(text)
	}

	chunks, err := s.chunker.Chunk(text, chunkx.WithLanguage(lang), chunkx.WithMaxSize(s.MaxSize))
	if err != nil {
		log.Debug().Err(err).Str("file_path", path).Msg("syntax split failed, using fallback splitter")
		return s.fallback(text)
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			out = append(out, c.Content)
		}
	}
	if len(out) == 0 {
		return s.fallback(text)
	}
	return out, nil
}

func (s *SyntaxSplitter) fallback(text string) ([]string, error) {
	if s.Fallback == nil {
		return []string{text}, nil
	}
	return s.Fallback.Split(text)
}

// Language reports the chunkx language for path, detected from its
// extension or file name. ok is false when chunkx has no parser for it.
func Language(path string) (languages.LanguageName, bool) {
	if path == "" {
		return "", false
	}
	cfg, ok := languages.DetectLanguage(path)
	if !ok || cfg.GetParser == nil {
		return "", false
	}
	return cfg.Name, true
}

// NewSplitter returns the splitter named by kind ("recursive" or "syntax").
func NewSplitter(kind string, size, overlap int) (Splitter, error) {
	recursive, err := NewRecursiveSplitter(size, overlap)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "", "recursive":
		return recursive, nil
	case "syntax":
		return NewSyntaxSplitter(size, recursive), nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", kind)
	}
}
