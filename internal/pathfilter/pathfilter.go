package pathfilter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// DefaultAccept lists the source and documentation files analyzed when no
// accept patterns are configured.
var DefaultAccept = []string{
	"*.go", "*.py", "*.java", "*.kt", "*.kts", "*.scala", "*.groovy",
	"*.js", "*.jsx", "*.ts", "*.tsx", "*.vue", "*.svelte",
	"*.c", "*.h", "*.cc", "*.cpp", "*.hpp", "*.cs", "*.rs", "*.swift", "*.m",
	"*.rb", "*.php", "*.dart", "*.lua", "*.sh",
	"*.html", "*.css", "*.scss",
	"*.md", "*.yaml", "*.yml", "*.toml", "*.gradle",
	"Dockerfile", "Makefile",
}

// DefaultIgnore lists vendored, generated and binary paths that never carry
// signal for the summarizer.
var DefaultIgnore = []string{
	"vendor/", "node_modules/", ".git/", ".terraform/", "target/", "build/",
	"dist/", "out/", "bin/", "obj/", ".venv/", "venv/", "__pycache__/",
	".pytest_cache/", ".gradle/", ".m2/", ".idea/", "coverage/", ".cache/",
	"*.lock", "*.sum", "*.min.js", "*.min.css", "*.map",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.pdf", "*.webp", "*.svg",
	"*.zip", "*.exe", "*.dll",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
}

type rule struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
}

// GlobSpec is an ordered set of gitignore-style patterns. The last matching
// pattern decides; a leading "!" re-includes. Immutable after Compile.
type GlobSpec struct {
	rules []rule
}

// Compile parses patterns into a GlobSpec. Blank lines and "#" comments are
// skipped.
func Compile(patterns []string) (*GlobSpec, error) {
	spec := &GlobSpec{rules: make([]rule, 0, len(patterns))}
	for _, raw := range patterns {
		p := strings.TrimRight(raw, " \t\r")
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}

		var r rule
		if strings.HasPrefix(p, "!") {
			r.negate = true
			p = p[1:]
		} else if strings.HasPrefix(p, `\!`) || strings.HasPrefix(p, `\#`) {
			p = p[1:]
		}
		if strings.HasSuffix(p, "/") {
			r.dirOnly = true
			p = strings.TrimRight(p, "/")
		}
		if strings.Contains(p, "/") {
			r.anchored = true
			p = strings.TrimPrefix(p, "/")
		}
		if p == "" {
			continue
		}
		p = negatedClasses(p)
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", raw, err)
		}
		r.pattern = p
		spec.rules = append(spec.rules, r)
	}
	return spec, nil
}

// negatedClasses rewrites gitwildmatch "[!...]" classes to the "[^...]"
// form the matcher understands. Escaped brackets are left alone.
func negatedClasses(p string) string {
	if !strings.Contains(p, "[!") {
		return p
	}
	b := []byte(p)
	inClass := false
	for i := 0; i < len(b); i++ {
		switch {
		case b[i] == '\\':
			i++
		case !inClass && b[i] == '[':
			inClass = true
			if i+1 < len(b) && b[i+1] == '!' {
				b[i+1] = '^'
				i++
			}
		case inClass && b[i] == ']':
			inClass = false
		}
	}
	return string(b)
}

// MustCompile is like Compile but panics on a malformed pattern.
func MustCompile(patterns []string) *GlobSpec {
	spec, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return spec
}

// Len returns the number of effective patterns.
func (g *GlobSpec) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rules)
}

// Matches reports whether the slash-separated repository path p is matched.
// A pattern that matches a parent directory of p matches p as well.
func (g *GlobSpec) Matches(p string) bool {
	if g == nil || len(g.rules) == 0 {
		return false
	}
	parts := splitPath(p)
	if len(parts) == 0 {
		return false
	}

	matched := false
	for _, r := range g.rules {
		if r.match(parts) {
			matched = !r.negate
		}
	}
	return matched
}

func (r rule) match(parts []string) bool {
	for i := 1; i <= len(parts); i++ {
		isDir := i < len(parts)
		if r.dirOnly && !isDir {
			continue
		}
		subject := parts[i-1]
		if r.anchored {
			subject = strings.Join(parts[:i], "/")
		}
		if ok, _ := doublestar.Match(r.pattern, subject); ok {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Filter decides whether a repository file takes part in analysis.
type Filter struct {
	Accept *GlobSpec
	Ignore *GlobSpec
}

// New compiles accept and ignore pattern lists into a Filter.
func New(accept, ignore []string) (*Filter, error) {
	a, err := Compile(accept)
	if err != nil {
		return nil, fmt.Errorf("accept spec: %w", err)
	}
	i, err := Compile(ignore)
	if err != nil {
		return nil, fmt.Errorf("ignore spec: %w", err)
	}
	return &Filter{Accept: a, Ignore: i}, nil
}

// Default returns a Filter built from DefaultAccept and DefaultIgnore.
func Default() *Filter {
	return &Filter{
		Accept: MustCompile(DefaultAccept),
		Ignore: MustCompile(DefaultIgnore),
	}
}

// Accepted is Accept.Matches(p) && !Ignore.Matches(p).
func (f *Filter) Accepted(p string) bool {
	if f == nil {
		return true
	}
	return f.Accept.Matches(p) && !f.Ignore.Matches(p)
}

// AcceptedEntry is Accepted for tree listings; directories are never accepted.
func (f *Filter) AcceptedEntry(p string, isDir bool) bool {
	if isDir {
		return false
	}
	return f.Accepted(p)
}

// ParseLines reads one pattern per line, in the format of a .gitignore file.
func ParseLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// LoadFile reads patterns from a file. An empty name yields fallback.
func LoadFile(name string, fallback []string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return fallback, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseLines(f)
}
