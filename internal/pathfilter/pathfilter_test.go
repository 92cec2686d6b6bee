package pathfilter

import (
	"strings"
	"testing"
)

func TestGlobSpec_Matches(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		expected bool
	}{
		{"extension at root", []string{"*.go"}, "main.go", true},
		{"extension nested", []string{"*.go"}, "internal/ai/client.go", true},
		{"extension mismatch", []string{"*.go"}, "README.md", false},
		{"directory pattern matches children", []string{"vendor/"}, "vendor/github.com/x/y.go", true},
		{"directory pattern nested", []string{"node_modules/"}, "web/node_modules/react/index.js", true},
		{"directory pattern does not match file", []string{"build/"}, "build", false},
		{"anchored pattern", []string{"/docs/*.md"}, "docs/intro.md", true},
		{"anchored pattern not nested", []string{"/docs/*.md"}, "sub/docs/intro.md", false},
		{"double star", []string{"src/**/*.ts"}, "src/app/deep/x.ts", true},
		{"exact name", []string{"Dockerfile"}, "deploy/Dockerfile", true},
		{"negation re-includes", []string{"*.md", "!README.md"}, "README.md", false},
		{"negation keeps others", []string{"*.md", "!README.md"}, "CHANGELOG.md", true},
		{"last match wins", []string{"!keep.txt", "*.txt"}, "keep.txt", true},
		{"comments and blanks skipped", []string{"# comment", "", "*.py"}, "a.py", true},
		{"leading dot slash", []string{"*.go"}, "./cmd/main.go", true},
		{"negated class excludes", []string{"[!a]*.go"}, "a.go", false},
		{"negated class matches", []string{"[!a]*.go"}, "b.go", true},
		{"caret class", []string{"[^a]*.go"}, "b.go", true},
		{"empty spec", nil, "main.go", false},
		{"empty path", []string{"*"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Compile(tt.patterns)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if got := spec.Matches(tt.path); got != tt.expected {
				t.Errorf("Matches(%q) with %v = %v, expected %v", tt.path, tt.patterns, got, tt.expected)
			}
		})
	}
}

func TestNegatedClasses(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"*.go", "*.go"},
		{"[!a]*.go", "[^a]*.go"},
		{"src/[!._]*/[!t]*.ts", "src/[^._]*/[^t]*.ts"},
		{`\[!a]`, `\[!a]`},
		{"[a!]", "[a!]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := negatedClasses(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCompile_BadPattern(t *testing.T) {
	_, err := Compile([]string{"[abc"})
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
	if !strings.Contains(err.Error(), "bad pattern") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFilter_AcceptedIsAcceptAndNotIgnore(t *testing.T) {
	pairs := []struct {
		accept []string
		ignore []string
	}{
		{[]string{"*.go"}, []string{"vendor/"}},
		{[]string{"*"}, []string{"*_test.go", "testdata/"}},
		{[]string{"src/**"}, []string{"*.min.js"}},
		{DefaultAccept, DefaultIgnore},
		{nil, []string{"*.go"}},
	}
	paths := []string{
		"main.go",
		"vendor/lib/lib.go",
		"pkg/x_test.go",
		"testdata/golden.txt",
		"src/app.min.js",
		"src/app.js",
		"README.md",
		"web/node_modules/a/index.js",
		"yarn.lock",
		"assets/logo.png",
	}

	for _, pair := range pairs {
		f, err := New(pair.accept, pair.ignore)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		for _, p := range paths {
			want := f.Accept.Matches(p) && !f.Ignore.Matches(p)
			if got := f.Accepted(p); got != want {
				t.Errorf("Accepted(%q) accept=%v ignore=%v = %v, expected %v", p, pair.accept, pair.ignore, got, want)
			}
		}
	}
}

func TestFilter_DirectoriesNeverAccepted(t *testing.T) {
	f, err := New([]string{"*", "src"}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !f.Accepted("src") {
		t.Fatal("precondition: pattern should match the path")
	}
	if f.AcceptedEntry("src", true) {
		t.Error("directory entry must never be accepted")
	}
	if !f.AcceptedEntry("src", false) {
		t.Error("file entry with the same path should be accepted")
	}
}

func TestDefaultFilter(t *testing.T) {
	f := Default()
	tests := []struct {
		path     string
		expected bool
	}{
		{"cmd/api/main.go", true},
		{"app/main.py", true},
		{"README.md", true},
		{"vendor/x/y.go", false},
		{"frontend/node_modules/react/index.js", false},
		{"go.sum", false},
		{"images/logo.png", false},
		{"package-lock.json", false},
		{"LICENSE", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := f.Accepted(tt.path); got != tt.expected {
				t.Errorf("Accepted(%q) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestNilFilterAcceptsEverything(t *testing.T) {
	var f *Filter
	if !f.Accepted("anything/at/all.bin") {
		t.Error("nil filter should accept all paths")
	}
}

func TestParseLines(t *testing.T) {
	in := "# header\n\n*.go\n  vendor/  \n!keep.go\n"
	got, err := ParseLines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseLines failed: %v", err)
	}
	want := []string{"*.go", "vendor/", "!keep.go"}
	if len(got) != len(want) {
		t.Fatalf("expected %d patterns, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLoadFile_Fallback(t *testing.T) {
	got, err := LoadFile("", []string{"*.go"})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(got) != 1 || got[0] != "*.go" {
		t.Errorf("expected fallback patterns, got %v", got)
	}
	if _, err := LoadFile("/nonexistent/patterns", nil); err == nil {
		t.Error("expected error for missing file")
	}
}
