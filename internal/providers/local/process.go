package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/biodoia/goleapcode/internal/providers/openai"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var errRunnerExited = errors.New("runner exited before becoming ready")

// ProcessConfig configura il runner esterno per i modelli locali
type ProcessConfig struct {
	// Command è l'eseguibile del runner (es. llama-server)
	Command string `yaml:"command" mapstructure:"command"`

	// Args supporta i segnaposto {model}, {model_path} e {port}
	Args []string `yaml:"args" mapstructure:"args"`

	// ModelsDir è la directory dei pesi dei modelli
	ModelsDir string `yaml:"models_dir" mapstructure:"models_dir"`

	// HealthPath è l'endpoint interrogato finché il runner non risponde
	HealthPath string `yaml:"health_path" mapstructure:"health_path"`

	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout"`
}

// ProcessLoader avvia un runner OpenAI-compatible per ogni modello caricato
type ProcessLoader struct {
	config ProcessConfig
	probe  *resty.Client
}

// NewProcessLoader crea un loader basato su processi esterni
func NewProcessLoader(cfg ProcessConfig) *ProcessLoader {
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 60 * time.Second
	}

	return &ProcessLoader{
		config: cfg,
		probe: resty.New().
			SetTimeout(3 * time.Second).
			SetRetryCount(0),
	}
}

// Load avvia il runner e attende che risponda sull'endpoint di health
func (l *ProcessLoader) Load(ctx context.Context, spec providers.Spec) (Handle, error) {
	if l.config.Command == "" {
		return nil, errors.New("local runner command not configured")
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("allocate port: %w", err)
	}

	// il processo deve sopravvivere al ctx della richiesta di caricamento
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, l.config.Command, l.expandArgs(spec, port)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start runner: %w", err)
	}

	h := &processHandle{
		modelID: spec.ModelID,
		cmd:     cmd,
		cancel:  cancel,
		exited:  make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := l.waitReady(ctx, baseURL+l.config.HealthPath, h); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("runner for %s not ready: %w (output: %s)", spec.ModelID, err, truncateOutput(out.String()))
	}

	h.client = openai.NewClient(spec.ModelID, spec.Model, providers.Config{BaseURL: baseURL}).
		WithConfidence(DefaultConfidence)

	log.Info().
		Str("model", spec.ModelID).
		Int("port", port).
		Int("pid", cmd.Process.Pid).
		Msg("Local runner started")

	return h, nil
}

func (l *ProcessLoader) expandArgs(spec providers.Spec, port int) []string {
	replacer := strings.NewReplacer(
		"{model}", spec.Model,
		"{model_path}", filepath.Join(l.config.ModelsDir, spec.Model),
		"{port}", strconv.Itoa(port),
	)

	args := make([]string, len(l.config.Args))
	for i, a := range l.config.Args {
		args[i] = replacer.Replace(a)
	}
	return args
}

// waitReady interroga l'health endpoint finché il runner risponde, termina
// o scade StartupTimeout
func (l *ProcessLoader) waitReady(ctx context.Context, url string, h *processHandle) error {
	deadline := time.Now().Add(l.config.StartupTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-h.exited:
			return h.exitError()
		default:
		}

		resp, err := l.probe.R().SetContext(ctx).Get(url)
		if err == nil && resp.StatusCode() < 500 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.exited:
			return h.exitError()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("startup timeout after %s", l.config.StartupTimeout)
}

type processHandle struct {
	modelID string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	client  *openai.Client
	once    sync.Once

	// exited viene chiuso quando il processo termina; waitErr è valido dopo
	exited  chan struct{}
	waitErr error
}

func (h *processHandle) exitError() error {
	if h.waitErr != nil {
		return fmt.Errorf("%w: %v", errRunnerExited, h.waitErr)
	}
	return errRunnerExited
}

func (h *processHandle) Generate(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	return h.client.ChatCompletion(ctx, req)
}

// Close termina il processo del runner
func (h *processHandle) Close() error {
	h.once.Do(func() {
		h.cancel()
		<-h.exited
		log.Info().Str("model", h.modelID).Msg("Local runner stopped")
	})
	return nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func truncateOutput(output string) string {
	s := strings.TrimSpace(output)
	if len(s) > 400 {
		return s[:400] + "..."
	}
	return s
}
