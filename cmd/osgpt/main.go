// Command osgpt runs the simulated office: a roster of LLM-backed agents
// working a project's issues to completion, one orchestration step at a time.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"osgpt/pkg/config"
	"osgpt/pkg/gateway"
	"osgpt/pkg/logx"
	"osgpt/pkg/metrics"
	"osgpt/pkg/orch"
)

// Version information, set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configPath  = flag.String("config", "osgpt.yaml", "Path to the workspace config file")
		input       = flag.String("input", "", "Problem statement to file as the first issue")
		maxSteps    = flag.Int("max-steps", 50, "Hard ceiling on orchestration steps")
		interactive = flag.Bool("interactive", false, "Prompt for new problems between steps")
		secretsDir  = flag.String("secrets-dir", ".", "Directory holding the encrypted secrets file")
		showUsage   = flag.Bool("usage", false, "Print per-actor model usage from Prometheus and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("osgpt %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if *showUsage {
		os.Exit(reportUsage(*configPath))
	}

	os.Exit(run(*configPath, *input, *secretsDir, *maxSteps, *interactive))
}

// run contains the main application logic and returns an exit code, so
// defers execute before the process exits.
func run(configPath, input, secretsDir string, maxSteps int, interactive bool) int {
	logger := logx.NewLogger("osgpt")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if err := loadSecrets(secretsDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets: %v\n", err)
		return 1
	}

	client, err := buildClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build model client: %v\n", err)
		return 1
	}

	orchestrator, err := orch.New(cfg, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up workspace: %v\n", err)
		return 1
	}
	defer func() {
		if err := orchestrator.Close(); err != nil {
			logger.Warn("closing orchestrator: %v", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, orchestrator, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	taskID := uuid.NewString()
	logger.Info("starting task %s with model %s", taskID, client.ModelName())

	stdin := bufio.NewReader(os.Stdin)
	for step := 1; step <= maxSteps; step++ {
		if input == "" && interactive {
			fmt.Print("> ")
			line, err := stdin.ReadString('\n')
			if err != nil {
				break
			}
			input = strings.TrimSpace(line)
		}

		result, err := orchestrator.ExecuteStep(ctx, taskID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Step %d failed: %v\n", step, err)
			return 1
		}
		input = ""

		fmt.Printf("--- step %d ---\n%s\n", step, result.Output)
		if result.IsLast {
			fmt.Println("All issues closed.")
			fmt.Println(orchestrator.Workspace().Display())
			return 0
		}
		if ctx.Err() != nil {
			logger.Info("interrupted, stopping after step %d", step)
			return 130
		}
	}

	fmt.Println("Step ceiling reached before all issues were closed.")
	fmt.Println(orchestrator.Workspace().Display())
	return 0
}

// reportUsage prints per-actor model usage aggregated by the Prometheus
// server scraping the metrics endpoint.
func reportUsage(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Metrics.PrometheusURL == "" {
		fmt.Fprintln(os.Stderr, "No metrics.prometheus_url configured.")
		return 1
	}

	query, err := metrics.NewQueryService(cfg.Metrics.PrometheusURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reach Prometheus: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	actors, err := query.AllActors(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list actors: %v\n", err)
		return 1
	}
	if len(actors) == 0 {
		fmt.Println("No recorded model usage.")
		return 0
	}

	fmt.Printf("%-24s %10s %10s %12s %10s\n", "ACTOR", "REQUESTS", "PROMPT", "COMPLETION", "TOTAL")
	for _, actor := range actors {
		usage, err := query.ActorUsage(ctx, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to query usage for %s: %v\n", actor, err)
			return 1
		}
		fmt.Printf("%-24s %10d %10d %12d %10d\n",
			usage.Actor, usage.Requests, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	}
	return 0
}

// loadSecrets decrypts the secrets file when one exists, prompting for the
// password. API keys then resolve from memory before the environment.
func loadSecrets(dir string) error {
	if !config.SecretsFileExists(dir) {
		return nil
	}

	fmt.Print("Secrets file found. Password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	values, err := config.DecryptSecretsFile(dir, string(password))
	if err != nil {
		return fmt.Errorf("decrypting secrets: %w", err)
	}
	config.SetSecrets(values)
	return nil
}

// buildClient constructs the provider client and applies the shared
// middleware stack: sampling overrides innermost, retries outermost.
func buildClient(cfg *config.Config, logger *logx.Logger) (gateway.Client, error) {
	var base gateway.Client
	switch cfg.Model.Provider {
	case config.ProviderAnthropic:
		key, err := config.GetSecret(cfg.Model.APIKeyEnv())
		if err != nil {
			return nil, err
		}
		base = gateway.NewClaudeClient(key, cfg.Model.Name)
	case config.ProviderOpenAI:
		key, err := config.GetSecret(cfg.Model.APIKeyEnv())
		if err != nil {
			return nil, err
		}
		base = gateway.NewOpenAIClient(key, cfg.Model.Name)
	case config.ProviderGemini:
		key, err := config.GetSecret(cfg.Model.APIKeyEnv())
		if err != nil {
			return nil, err
		}
		base = gateway.NewGeminiClient(key, cfg.Model.Name)
	case config.ProviderOllama:
		base = gateway.NewOllamaClient(cfg.Model.Host, cfg.Model.Name)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Model.Provider)
	}

	return gateway.Wrap(base,
		gateway.WithRetry(logger),
		gateway.WithTuning(cfg.Model.MaxTokens, cfg.Model.Temperature, cfg.Model.TopP),
	), nil
}

func serveMetrics(addr string, orchestrator *orch.Orchestrator, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", orchestrator.Recorder().Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server: %v", err)
	}
}
