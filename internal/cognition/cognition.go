// Package cognition implements the planner and perceiver collaborators on
// top of a text-generation model.
package cognition

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/cortex/internal/llm"
	"github.com/aretw0/cortex/pkg/ports"
)

// Planner asks a model for the next CALL or TERMINAL line.
type Planner struct {
	gen  llm.Generator
	tmpl *template.Template
}

var _ ports.Planner = (*Planner)(nil)

// NewPlanner creates a planner backed by gen.
func NewPlanner(gen llm.Generator) *Planner {
	return &Planner{
		gen:  gen,
		tmpl: template.Must(template.New("planner").Funcs(funcs).Parse(plannerPrompt)),
	}
}

// Plan renders the prompt for req and returns the raw model output.
func (p *Planner) Plan(ctx context.Context, req ports.PlanRequest) (string, error) {
	prompt, err := p.Prompt(req)
	if err != nil {
		return "", err
	}
	out, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Prompt renders the planner prompt for req.
func (p *Planner) Prompt(req ports.PlanRequest) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render planner prompt: %w", err)
	}
	return buf.String(), nil
}

// Perceiver asks a model for a JSON description of the text.
type Perceiver struct {
	gen   llm.Generator
	tools func() []string
	tmpl  *template.Template
}

var _ ports.Perceiver = (*Perceiver)(nil)

// NewPerceiver creates a perceiver backed by gen. toolNames is consulted on
// every call so newly discovered tools are offered as hints.
func NewPerceiver(gen llm.Generator, toolNames func() []string) *Perceiver {
	if toolNames == nil {
		toolNames = func() []string { return nil }
	}
	return &Perceiver{
		gen:   gen,
		tools: toolNames,
		tmpl:  template.Must(template.New("perceiver").Funcs(funcs).Parse(perceiverPrompt)),
	}
}

// Perceive returns the raw model output. Decoding is left to the caller.
func (p *Perceiver) Perceive(ctx context.Context, text string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Text      string
		ToolNames []string
	}{Text: text, ToolNames: p.tools()}
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render perceiver prompt: %w", err)
	}
	return p.gen.Generate(ctx, buf.String())
}
