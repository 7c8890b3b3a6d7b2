package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tandemrev/tandemrev/index"
	"github.com/tandemrev/tandemrev/metadata"
	"github.com/tandemrev/tandemrev/model"
)

// fakeToolset is an in-memory Toolset with configurable results and delays.
type fakeToolset struct {
	mu          sync.Mutex
	activated   bool
	dispatched  []string
	results     map[string]string
	delay       time.Duration
	dispatchErr error
}

func newFakeToolset() *fakeToolset {
	return &fakeToolset{results: make(map[string]string)}
}

func (f *fakeToolset) Definitions() []model.ToolDefinition {
	return []model.ToolDefinition{
		{Name: "activate_project"},
		{Name: "read_file"},
		{Name: "list_memories"},
	}
}

func (f *fakeToolset) PreflightTool() string { return "activate_project" }

func (f *fakeToolset) Activated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activated
}

func (f *fakeToolset) Dispatch(ctx context.Context, name, argumentsJSON string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	f.dispatched = append(f.dispatched, name)
	if name == "activate_project" {
		f.activated = true
	}
	result, ok := f.results[name]
	err := f.dispatchErr
	f.mu.Unlock()

	if name == "activate_project" {
		return `{"status":"activated"}`, nil
	}
	if err != nil {
		return "", err
	}
	if ok {
		return result, nil
	}
	return fmt.Sprintf(`{"tool":%q}`, name), nil
}

func (f *fakeToolset) Dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.dispatched))
	copy(out, f.dispatched)
	return out
}

func (f *fakeToolset) Usage() index.Usage {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage := index.Usage{Tools: append([]string(nil), f.dispatched...)}
	if f.activated {
		usage.ActivatedProject = "."
	}
	return usage
}

// stubFetcher serves fixed model metadata to a catalog.
type stubFetcher struct {
	models []metadata.Metadata
	err    error
}

func (f *stubFetcher) ListModels(ctx context.Context) ([]metadata.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func newTestCatalog(models ...metadata.Metadata) *metadata.Catalog {
	return metadata.NewCatalog(&stubFetcher{models: models})
}

func toolCapableModel(id string) metadata.Metadata {
	return metadata.Metadata{
		ID:                  id,
		ContextWindowTokens: 32000,
		SupportsToolCalling: true,
		SupportedParameters: []string{"tools"},
		FetchedAt:           time.Now(),
	}
}

func textOnlyModel(id string) metadata.Metadata {
	return metadata.Metadata{
		ID:                  id,
		ContextWindowTokens: 32000,
		FetchedAt:           time.Now(),
	}
}

func defaultBridgeLimits() BridgeLimits {
	return BridgeLimits{
		MaxCalls:       32,
		CallTimeout:    5 * time.Second,
		MaxResultChars: 12000,
		MaxTotalChars:  50000,
	}
}

func toolCallResponse(calls ...model.ToolCall) *model.Response {
	return &model.Response{ToolCalls: calls, FinishReason: "tool_calls"}
}

func textResponse(text string) *model.Response {
	return &model.Response{Text: text, FinishReason: "stop"}
}
