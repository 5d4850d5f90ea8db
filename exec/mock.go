package exec

import (
	"context"
	"slices"
	"sync"
)

// MockResponse is the canned result for a matched command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// CommandMatcher reports whether a command invocation matches a rule.
type CommandMatcher func(dir, name string, args []string) bool

// MockRule pairs a matcher with its response.
type MockRule struct {
	Match    CommandMatcher
	Response MockResponse
}

// MockCall records one invocation.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// MockExecutor answers commands from registered rules, first match wins.
// Unmatched commands go to the fallback when one is set, otherwise they
// succeed with empty output.
type MockExecutor struct {
	mu       sync.RWMutex
	rules    []MockRule
	calls    []MockCall
	fallback CommandExecutor
}

// NewMockExecutor creates a MockExecutor. fallback may be nil.
func NewMockExecutor(fallback CommandExecutor) *MockExecutor {
	return &MockExecutor{fallback: fallback}
}

// AddRule registers a matcher and its response.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, MockRule{Match: match, Response: response})
}

// AddExactMatch matches a command whose arguments equal args.
func (e *MockExecutor) AddExactMatch(name string, args []string, response MockResponse) {
	e.AddRule(func(_, n string, a []string) bool {
		return n == name && slices.Equal(a, args)
	}, response)
}

// AddPrefixMatch matches a command whose arguments start with prefixArgs.
func (e *MockExecutor) AddPrefixMatch(name string, prefixArgs []string, response MockResponse) {
	e.AddRule(func(_, n string, a []string) bool {
		return n == name && len(a) >= len(prefixArgs) && slices.Equal(a[:len(prefixArgs)], prefixArgs)
	}, response)
}

// GetCalls returns a copy of the recorded invocations.
func (e *MockExecutor) GetCalls() []MockCall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.calls)
}

// ClearCalls forgets recorded invocations.
func (e *MockExecutor) ClearCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *MockExecutor) lookup(dir, name string, args []string) (MockResponse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, MockCall{Dir: dir, Name: name, Args: slices.Clone(args)})
	for _, rule := range e.rules {
		if rule.Match(dir, name, args) {
			return rule.Response, true
		}
	}
	return MockResponse{}, false
}

// Run executes a mocked command.
func (e *MockExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	if resp, ok := e.lookup(dir, name, args); ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}
	if e.fallback != nil {
		return e.fallback.Run(ctx, dir, name, args...)
	}
	return nil, nil, nil
}

// Output executes a mocked command.
func (e *MockExecutor) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	if resp, ok := e.lookup(dir, name, args); ok {
		return resp.Stdout, resp.Err
	}
	if e.fallback != nil {
		return e.fallback.Output(ctx, dir, name, args...)
	}
	return nil, nil
}

// CombinedOutput executes a mocked command.
func (e *MockExecutor) CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	if resp, ok := e.lookup(dir, name, args); ok {
		combined := append(slices.Clone(resp.Stdout), resp.Stderr...)
		return combined, resp.Err
	}
	if e.fallback != nil {
		return e.fallback.CombinedOutput(ctx, dir, name, args...)
	}
	return nil, nil
}

var _ CommandExecutor = (*MockExecutor)(nil)
