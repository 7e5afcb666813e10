// chatterm is an interactive terminal client for a streaming chat backend.
// Lines typed on stdin are sent as messages; assistant replies stream to the
// console as they arrive. Type /history to reprint the bounded transcript and
// /status for the current connection state.
//
// Usage: go run ./cmd/chatterm --config configs/chatterm.example.yaml
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jck411/chatstream/internal/config"
	"github.com/jck411/chatstream/internal/connection"
	"github.com/jck411/chatstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chatterm.example.yaml", "path to config file")
	serverURL := flag.String("url", "", "override server.url from the config")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("chatterm " + version.String())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	printer := newConsolePrinter(cfg.History.MaxMessages)

	mgr := connection.NewManager(managerConfig(cfg), connection.Events{
		OnConnectionStateChanged: printer.stateChanged,
		OnTextDelta:              printer.textDelta,
		OnMessageComplete:        printer.messageComplete,
		OnMessageFailed:          printer.messageFailed,
	}, logger)
	defer mgr.Shutdown()

	logger.Info("connecting", "url", cfg.Server.URL)
	if err := mgr.Connect(ctx); err != nil {
		// The manager keeps retrying in the background.
		logger.Warn("initial connect failed, retrying", "error", err)
	}

	// Read stdin lines and send them until EOF or shutdown.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if line == "/history" {
				printer.printHistory()
				continue
			}
			if line == "/status" {
				printer.printStatus(mgr.State())
				continue
			}
			if _, err := mgr.Send(line); err != nil {
				printer.sendRejected(err)
				continue
			}
			printer.sent(line)
		}
		if err := scanner.Err(); err != nil {
			logger.Error("stdin read failed", "error", err)
		}
		cancel()
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}

// managerConfig maps the file configuration onto the connection manager.
func managerConfig(cfg *config.ChatConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		URL:                cfg.Server.URL,
		ConnectTimeout:     cfg.Server.ConnectTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		BufferSize:         cfg.Server.BufferSize,
		MaxRetries:         *cfg.Retry.MaxRetries,
		RetryBaseDelay:     cfg.Retry.BaseDelay,
		RetryMaxDelay:      cfg.Retry.MaxDelay,
		RetryJitter:        cfg.Retry.Jitter,
		HealthCheck:        !cfg.Health.Disabled,
		PingInterval:       cfg.Health.PingInterval,
		HealthTimeout:      cfg.Health.PongTimeout,
		BatchInterval:      cfg.Stream.BatchInterval,
		MaxInFlight:        cfg.Stream.MaxInFlight,
		MaxMessageLifetime: *cfg.Stream.MaxMessageLifetime,
		MaxMessageLength:   cfg.Send.MaxLength,
		RateLimitMessages:  *cfg.Send.RateLimit,
		RateLimitWindow:    cfg.Send.RateWindow,
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// consolePrinter renders manager events on stdout and keeps a bounded
// transcript. Callbacks arrive from several goroutines, so output is
// serialized.
type consolePrinter struct {
	mu         sync.Mutex
	streaming  bool
	maxHistory int
	history    []transcriptEntry
}

type transcriptEntry struct {
	role string // "you" or "assistant"
	text string
}

func newConsolePrinter(maxHistory int) *consolePrinter {
	return &consolePrinter{maxHistory: maxHistory}
}

func (p *consolePrinter) stateChanged(state connection.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fmt.Printf("-- %s --\n", state)
}

func (p *consolePrinter) textDelta(id, delta string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streaming = true
	fmt.Print(delta)
}

func (p *consolePrinter) messageComplete(id, full string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	p.remember("assistant", full)
}

func (p *consolePrinter) messageFailed(id, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fmt.Printf("!! message failed: %s\n", reason)
}

func (p *consolePrinter) sendRejected(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fmt.Printf("!! not sent: %v\n", err)
}

func (p *consolePrinter) sent(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remember("you", text)
}

func (p *consolePrinter) printStatus(state connection.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fmt.Printf("-- status: %s --\n", state)
}

func (p *consolePrinter) printHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	if len(p.history) == 0 {
		fmt.Println("-- no history --")
		return
	}
	for _, e := range p.history {
		fmt.Printf("[%s] %s\n", e.role, e.text)
	}
}

// remember appends a transcript entry, trimming the oldest past the cap.
// Callers hold p.mu. A negative cap disables history.
func (p *consolePrinter) remember(role, text string) {
	if p.maxHistory < 0 {
		return
	}
	p.history = append(p.history, transcriptEntry{role: role, text: text})
	if len(p.history) > p.maxHistory {
		p.history = p.history[len(p.history)-p.maxHistory:]
	}
}

// breakLine terminates a partially printed reply. Callers hold p.mu.
func (p *consolePrinter) breakLine() {
	if p.streaming {
		fmt.Println()
		p.streaming = false
	}
}
