package embed

import (
	"context"
	"sync"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// MockCall represents a recorded method call on the mock provider.
type MockCall struct {
	Method    string
	Args      []interface{}
	Timestamp time.Time
}

// MockProvider is a Provider for testing. Vectors come from the same
// deterministic scheme as LocalProvider; on top of that the mock records
// every call and can be told to fail.
type MockProvider struct {
	mu           sync.RWMutex
	dimensions   int
	model        string
	calls        []MockCall
	embedError   error
	batchError   error
	failBatches  int
	delay        time.Duration
	healthStatus types.HealthStatus
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		dimensions:   DefaultDimensions,
		model:        "mock-embedder",
		calls:        make([]MockCall, 0),
		healthStatus: types.Healthy("mock provider"),
	}
}

// Embed generates a deterministic embedding for a single text.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Embed", text)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.embedError != nil {
		return nil, m.embedError
	}

	return deterministicVector(m.model, text, m.dimensions), nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("EmbedBatch", texts)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.batchError != nil {
		return nil, m.batchError
	}
	if m.failBatches > 0 {
		m.failBatches--
		return nil, types.NewEmbeddingUnavailableError("mock batch failure", nil)
	}

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(m.model, text, m.dimensions)
	}
	return vectors, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
func (m *MockProvider) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Model returns the name of the mock embedding model.
func (m *MockProvider) Model() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Health returns the configured health status.
func (m *MockProvider) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Health")
	return m.healthStatus
}

// SetDimensions changes the embedding dimensions for testing.
func (m *MockProvider) SetDimensions(dims int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dims
}

// SetModel changes the model name for testing.
func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// SetEmbedError configures Embed() to return an error.
func (m *MockProvider) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedError = err
}

// SetBatchError configures EmbedBatch() to return an error until cleared.
func (m *MockProvider) SetBatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchError = err
}

// FailBatches makes the next n EmbedBatch calls fail with a retryable
// error, then succeed again. Used to exercise backoff paths.
func (m *MockProvider) FailBatches(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failBatches = n
}

// SetDelay makes every call wait before answering, for timeout tests.
func (m *MockProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHealthStatus configures what Health() should return.
func (m *MockProvider) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// GetCalls returns a copy of all recorded method calls.
func (m *MockProvider) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// GetCallsByMethod returns all calls to a specific method.
func (m *MockProvider) GetCallsByMethod(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, 0)
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// CallCount returns the total number of method calls.
func (m *MockProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// Reset clears recorded calls and restores the initial state.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = make([]MockCall, 0)
	m.embedError = nil
	m.batchError = nil
	m.failBatches = 0
	m.delay = 0
	m.dimensions = DefaultDimensions
	m.model = "mock-embedder"
	m.healthStatus = types.Healthy("mock provider")
}

func (m *MockProvider) record(method string, args ...interface{}) {
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

func (m *MockProvider) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
		return nil
	}
}
