package local

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	loads  atomic.Int32
	closes atomic.Int32
	delay  time.Duration
	err    error
}

func (l *countingLoader) Load(ctx context.Context, spec providers.Spec) (Handle, error) {
	l.loads.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	return &countingHandle{loader: l, inner: &stubHandle{modelID: spec.ModelID}}, nil
}

type countingHandle struct {
	loader *countingLoader
	inner  *stubHandle
}

func (h *countingHandle) Generate(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	return h.inner.Generate(ctx, req)
}

func (h *countingHandle) Close() error {
	h.loader.closes.Add(1)
	return nil
}

var mistral = providers.Spec{ModelID: "local-mistral", Model: "mistral-7b", Kind: providers.KindLocal}

func TestManager_LoadModelIsIdempotent(t *testing.T) {
	loader := &countingLoader{delay: 20 * time.Millisecond}
	m := NewManager(loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.LoadModel(context.Background(), mistral)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := m.LoadModel(context.Background(), mistral)
	require.NoError(t, err)

	assert.Equal(t, int32(1), loader.loads.Load())
	assert.Equal(t, []string{"local-mistral"}, m.Loaded())
}

func TestManager_GenerateLoadsOnDemand(t *testing.T) {
	m := NewManager(nil)

	resp, err := m.Generate(context.Background(), mistral, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "sys"},
			{Role: providers.RoleUser, Content: "Explain the difference between a mutex and a channel in Go please"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Mock response from local-mistral: Explain the difference between a mutex and a chann...", resp.Text())
	assert.Equal(t, 100, resp.Usage.TotalTokens)
	assert.Equal(t, DefaultConfidence, resp.Confidence)
	assert.Equal(t, []string{"local-mistral"}, m.Loaded())
}

func TestManager_UnloadModel(t *testing.T) {
	loader := &countingLoader{}
	m := NewManager(loader)

	// no-op per modelli mai caricati
	require.NoError(t, m.UnloadModel("local-codellama"))

	_, err := m.LoadModel(context.Background(), mistral)
	require.NoError(t, err)

	require.NoError(t, m.UnloadModel("local-mistral"))
	assert.Empty(t, m.Loaded())
	assert.Equal(t, int32(1), loader.closes.Load())

	// ricaricare dopo l'unload esegue di nuovo il loader
	_, err = m.LoadModel(context.Background(), mistral)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.loads.Load())
}

func TestManager_LoadError(t *testing.T) {
	loader := &countingLoader{err: errors.New("weights missing")}
	m := NewManager(loader)

	_, err := m.LoadModel(context.Background(), mistral)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights missing")
	assert.Empty(t, m.Loaded())
}

func TestManager_Close(t *testing.T) {
	loader := &countingLoader{}
	m := NewManager(loader)

	_, err := m.LoadModel(context.Background(), mistral)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Equal(t, int32(1), loader.closes.Load())

	_, err = m.LoadModel(context.Background(), mistral)
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestProvider_HealthCheckLoadsModel(t *testing.T) {
	m := NewManager(nil)
	p, err := m.Builder()(mistral, providers.Config{})
	require.NoError(t, err)

	assert.Equal(t, "local-mistral", p.Name())
	require.NoError(t, p.HealthCheck(context.Background()))
	assert.Equal(t, []string{"local-mistral"}, m.Loaded())
}

func TestProcessLoader_RequiresCommand(t *testing.T) {
	_, err := NewProcessLoader(ProcessConfig{}).Load(context.Background(), mistral)
	assert.Error(t, err)
}

func TestProcessLoader_RunnerExitsDuringStartup(t *testing.T) {
	l := NewProcessLoader(ProcessConfig{
		Command:        "sh",
		Args:           []string{"-c", "echo boom; exit 3"},
		StartupTimeout: 30 * time.Second,
	})

	start := time.Now()
	_, err := l.Load(context.Background(), mistral)

	require.Error(t, err)
	assert.ErrorIs(t, err, errRunnerExited)
	assert.Contains(t, err.Error(), "boom")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestProcessLoader_ExpandArgs(t *testing.T) {
	l := NewProcessLoader(ProcessConfig{
		Command:   "llama-server",
		Args:      []string{"-m", "{model_path}.gguf", "--port", "{port}", "--alias", "{model}"},
		ModelsDir: "/models",
	})

	args := l.expandArgs(mistral, 8081)
	assert.Equal(t, []string{"-m", "/models/mistral-7b.gguf", "--port", "8081", "--alias", "mistral-7b"}, args)
}
