package agent

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Call is one request recorded by MockClient.
type Call struct {
	System string
	User   string
	JSON   bool
	Schema *Schema
}

type mockRule struct {
	match    string
	response string
	err      error
	times    int // 0 means unlimited
}

// MockClient provides scripted AI responses for tests. Rules match a substring of the user
// prompt and are checked in the order they were added; the first live rule wins.
type MockClient struct {
	mu       sync.Mutex
	rules    []*mockRule
	fallback string
	delay    time.Duration
	calls    []Call
}

// NewMockClient creates a mock AI client for testing
func NewMockClient() *MockClient {
	return &MockClient{fallback: "Mock response"}
}

// On answers every prompt containing match with response.
func (m *MockClient) On(match, response string) *MockClient {
	return m.add(&mockRule{match: match, response: response})
}

// OnError fails every prompt containing match with err.
func (m *MockClient) OnError(match string, err error) *MockClient {
	return m.add(&mockRule{match: match, err: err})
}

// Once answers the next prompt containing match, then the rule is spent.
func (m *MockClient) Once(match, response string) *MockClient {
	return m.add(&mockRule{match: match, response: response, times: 1})
}

// OnceError fails the next prompt containing match, then the rule is spent.
func (m *MockClient) OnceError(match string, err error) *MockClient {
	return m.add(&mockRule{match: match, err: err, times: 1})
}

// Default sets the reply used when no rule matches.
func (m *MockClient) Default(response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
	return m
}

// WithDelay makes every call take d, or end early with the context's error.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

func (m *MockClient) add(r *mockRule) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
	return m
}

// CompleteWithSystem returns a mock response
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.reply(ctx, Call{System: systemPrompt, User: userPrompt})
}

// CompleteJSONWithSystem returns a mock JSON response
func (m *MockClient) CompleteJSONWithSystem(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	return m.reply(ctx, Call{System: systemPrompt, User: userPrompt, JSON: true, Schema: schema})
}

func (m *MockClient) reply(ctx context.Context, c Call) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.times < 0 || !strings.Contains(c.User, r.match) {
			continue
		}
		if r.times > 0 {
			r.times--
			if r.times == 0 {
				r.times = -1
			}
		}
		return r.response, r.err
	}
	return m.fallback, nil
}

// Calls returns a copy of every recorded request.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsMatching counts recorded requests whose user prompt contains substr.
func (m *MockClient) CallsMatching(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(c.User, substr) {
			n++
		}
	}
	return n
}

// LastCall returns the most recent request.
func (m *MockClient) LastCall() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}
