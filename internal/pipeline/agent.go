// File: internal/pipeline/agent.go
package pipeline

import (
	"context"
	"errors"
	"strings"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

// Context is the mutable chain state: the seeded input plus one fragment
// per completed agent, stored under the agent's snake_case name. Later
// agents read every earlier fragment; on a key collision the later
// fragment replaces the earlier one wholesale.
type Context map[string]any

// Fragment is a single agent's JSON output.
type Fragment map[string]any

// Agent is one chain stage.
type Agent interface {
	Name() string
	Run(ctx context.Context, c Context) (Fragment, error)
}

// PromptFunc renders an agent prompt from the accumulated context.
type PromptFunc func(c Context) string

var (
	_ Agent = (*ModelAgent)(nil)
	_ Agent = (*ServiceAgent)(nil)
)

// ModelAgent drives one LLM call: build the prompt, complete, extract the
// JSON object, enforce the output contract.
type ModelAgent struct {
	name        string
	client      adapter.ModelClient
	temperature float32
	maxTokens   int
	prompt      PromptFunc
	required    []string
}

func NewModelAgent(name string, client adapter.ModelClient, temperature float32, maxTokens int, prompt PromptFunc, required ...string) *ModelAgent {
	return &ModelAgent{
		name:        name,
		client:      client,
		temperature: temperature,
		maxTokens:   maxTokens,
		prompt:      prompt,
		required:    required,
	}
}

func (a *ModelAgent) Name() string { return a.name }

func (a *ModelAgent) Run(ctx context.Context, c Context) (Fragment, error) {
	raw, err := a.client.Complete(ctx, a.prompt(c), a.temperature, a.maxTokens)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, stageErr(a.name, KindTimeout, err)
		}
		return nil, stageErr(a.name, KindModel, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, stageErr(a.name, KindEmpty, errors.New("blank completion"))
	}
	obj, err := ExtractJSON(raw)
	if err != nil {
		return nil, stageErr(a.name, KindBadJSON, err)
	}
	if err := RequireKeys(obj, a.required); err != nil {
		return nil, stageErr(a.name, KindBadJSON, err)
	}
	return Fragment(obj), nil
}

// ServiceAgent delegates a stage to a downstream HTTP agent service.
type ServiceAgent struct {
	name string
	call func(ctx context.Context, c Context) (Fragment, error)
}

func NewServiceAgent(name string, call func(ctx context.Context, c Context) (Fragment, error)) *ServiceAgent {
	return &ServiceAgent{name: name, call: call}
}

func (a *ServiceAgent) Name() string { return a.name }

func (a *ServiceAgent) Run(ctx context.Context, c Context) (Fragment, error) {
	frag, err := a.call(ctx, c)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, stageErr(a.name, KindTimeout, err)
		}
		return nil, stageErr(a.name, KindService, err)
	}
	return frag, nil
}
