// Package chain runs map/collapse/combine summarization pipelines over
// documents with an LLM completion client.
package chain

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultTokenMax is the token budget for a single collapse or combine call.
const DefaultTokenMax = 3000

// DocumentSeparator joins documents inside one prompt.
const DocumentSeparator = "\n\n"

// Pipeline is one summarization task. Each prompt is a text/template with
// a {{.Docs}} slot.
type Pipeline struct {
	Name     string
	TokenMax int

	mapPrompt      *template.Template
	collapsePrompt *template.Template
	combinePrompt  *template.Template
}

// NewPipeline parses the three prompts. A tokenMax of zero selects
// DefaultTokenMax.
func NewPipeline(name, mapPrompt, collapsePrompt, combinePrompt string, tokenMax int) (*Pipeline, error) {
	if tokenMax <= 0 {
		tokenMax = DefaultTokenMax
	}
	p := &Pipeline{Name: name, TokenMax: tokenMax}

	var err error
	if p.mapPrompt, err = parse(name+".map", mapPrompt); err != nil {
		return nil, err
	}
	if p.collapsePrompt, err = parse(name+".collapse", collapsePrompt); err != nil {
		return nil, err
	}
	if p.combinePrompt, err = parse(name+".combine", combinePrompt); err != nil {
		return nil, err
	}
	return p, nil
}

// MustPipeline is NewPipeline that panics on a bad template.
func MustPipeline(name, mapPrompt, collapsePrompt, combinePrompt string, tokenMax int) *Pipeline {
	p, err := NewPipeline(name, mapPrompt, collapsePrompt, combinePrompt, tokenMax)
	if err != nil {
		panic(err)
	}
	return p
}

func parse(name, text string) (*template.Template, error) {
	if !strings.Contains(text, ".Docs") {
		return nil, fmt.Errorf("prompt %s has no {{.Docs}} slot", name)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	return t, nil
}

type promptData struct {
	Docs string
}

func render(t *template.Template, docs []string) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, promptData{Docs: strings.Join(docs, DocumentSeparator)}); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}

func (p *Pipeline) MapPrompt(doc string) (string, error) {
	return render(p.mapPrompt, []string{doc})
}

func (p *Pipeline) CollapsePrompt(docs []string) (string, error) {
	return render(p.collapsePrompt, docs)
}

func (p *Pipeline) CombinePrompt(docs []string) (string, error) {
	return render(p.combinePrompt, docs)
}
