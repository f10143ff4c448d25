// Package main is the one-shot remoteclaw driver: it sends a single prompt
// through the channel bridge and streams the agent's output to the terminal.
// The `auth` subcommand manages the credential profile store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	agentevents "github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/runtime"
	"github.com/remoteclaw/remoteclaw/internal/channel"
	"github.com/remoteclaw/remoteclaw/internal/common/config"
	"github.com/remoteclaw/remoteclaw/internal/common/logger"
	"github.com/remoteclaw/remoteclaw/internal/common/tracing"
	"github.com/remoteclaw/remoteclaw/internal/events"
	"github.com/remoteclaw/remoteclaw/internal/session"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "auth" {
		if err := runAuth(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "remoteclaw auth: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := runTurn(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "remoteclaw: %v\n", err)
		os.Exit(1)
	}
}

func runTurn(args []string) error {
	fs := flag.NewFlagSet("remoteclaw", flag.ExitOnError)
	configPath := fs.String("config", "", "config file or directory (default: config.yaml search path)")
	provider := fs.String("provider", "", "provider to run (overrides defaults.provider)")
	model := fs.String("model", "", "model override")
	channelID := fs.String("channel", "cli", "channel id for the session key")
	userID := fs.String("user", "local", "user id for the session key")
	threadID := fs.String("thread", "", "thread id for the session key")
	workspace := fs.String("workspace", "", "workspace directory for the child process")
	timeout := fs.Duration("timeout", 0, "total turn timeout (overrides defaults.timeoutMs)")
	jsonReply := fs.Bool("json", false, "print the full reply as JSON instead of a summary")
	_ = fs.Parse(args)

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("no prompt given; usage: remoteclaw [flags] <prompt>")
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadWithPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		if err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint); err != nil {
			log.Warn("tracing init failed, continuing without spans", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.Shutdown(shutdownCtx)
			}()
		}
	}

	eventBus, closeBus, err := events.Provide(cfg.NATS, log)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer closeBus()

	sessions := session.NewStore(cfg.Session.Dir, cfg.Session.TTL(), log)

	prov := *provider
	if prov == "" {
		prov = cfg.Defaults.Provider
	}
	prov = runtime.NormalizeProvider(prov)

	runner, err := runtime.NewForProvider(prov, cfg.Backends, log)
	if err != nil {
		return err
	}

	resolver := auth.NewResolver(cfg.Auth, log)
	resolve := func(provider string) (auth.Resolved, error) {
		return resolver.ResolveForProvider(auth.LoadStore(cfg.Auth.StorePath), provider)
	}

	opts := channel.Options{
		Provider:     prov,
		WorkspaceDir: cfg.Defaults.WorkspaceDir,
		Model:        cfg.Defaults.Model,
		MaxTurns:     cfg.Defaults.MaxTurns,
		Timeout:      cfg.Defaults.Timeout(),
	}
	if *workspace != "" {
		opts.WorkspaceDir = *workspace
	}
	if *model != "" {
		opts.Model = *model
	}
	if *timeout > 0 {
		opts.Timeout = *timeout
	}

	bridge := channel.NewBridge(runner, sessions, resolve, eventBus, opts, log)

	reply := bridge.Handle(ctx, channel.Message{
		ChannelID: *channelID,
		UserID:    *userID,
		ThreadID:  *threadID,
		Text:      prompt,
	}, terminalCallbacks())
	fmt.Println()

	if *jsonReply {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	printSummary(reply)
	if reply.Error != "" {
		return fmt.Errorf("turn failed: %s", reply.Error)
	}
	return nil
}

// terminalCallbacks streams partial text to stdout and activity to stderr.
func terminalCallbacks() *channel.Callbacks {
	return &channel.Callbacks{
		OnPartialText: func(ctx context.Context, text string) error {
			_, err := fmt.Print(text)
			return err
		},
		OnToolUse: func(ctx context.Context, ev agentevents.AgentEvent) error {
			fmt.Fprintf(os.Stderr, "[tool] %s %s\n", ev.ToolName, ev.ToolInput)
			return nil
		},
		OnStatus: func(ctx context.Context, status string) error {
			fmt.Fprintf(os.Stderr, "[status] %s\n", status)
			return nil
		},
		OnError: func(ctx context.Context, message string) error {
			fmt.Fprintf(os.Stderr, "[error] %s\n", message)
			return nil
		},
	}
}

func printSummary(reply channel.Reply) {
	fmt.Fprintf(os.Stderr, "---\nsession: %s  duration: %dms  aborted: %v\n",
		reply.SessionID, reply.DurationMS, reply.Aborted)
	if reply.Usage != nil {
		fmt.Fprintf(os.Stderr, "tokens: %d in / %d out (cache read %d)\n",
			reply.Usage.InputTokens, reply.Usage.OutputTokens, reply.Usage.CacheReadTokens)
	}
	if reply.TotalCostUSD > 0 {
		fmt.Fprintf(os.Stderr, "cost: $%.4f\n", reply.TotalCostUSD)
	}
}
