package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/pflag"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/lineledger/internal/auth"
	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/config"
	"github.com/mmynk/lineledger/internal/console"
	"github.com/mmynk/lineledger/internal/dispatch"
	"github.com/mmynk/lineledger/internal/engine"
	"github.com/mmynk/lineledger/internal/line"
	"github.com/mmynk/lineledger/internal/metrics"
	"github.com/mmynk/lineledger/internal/middleware"
	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/reply"
	"github.com/mmynk/lineledger/internal/service"
	"github.com/mmynk/lineledger/internal/storage/sqlite"
	"github.com/mmynk/lineledger/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("lineledger", pflag.ContinueOnError)
	configPath := flagSet.String("config", os.Getenv("LEDGER_CONFIG"), "path to the YAML config file")
	port := flagSet.Int("port", 0, "listen port (overrides the config)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Storage.DBPath)

	m := metrics.New(true)
	clk := clock.Real(cfg.Location())

	chain, err := newParserChain(cfg)
	if err != nil {
		return err
	}
	chain.OnFallback = m.ParserFallbacks.Inc

	svc := dispatch.Services{
		Ledger:  service.NewLedgerService(store, clk),
		Budgets: service.NewBudgetService(store, clk),
		Goals:   service.NewGoalService(store, clk),
		Groups:  service.NewGroupService(store, clk),
		Pets:    service.NewPetService(store, clk),
	}

	linkKey := []byte(cfg.LinkTokenSecret)
	if len(linkKey) == 0 && cfg.Line.ChannelSecret != "" {
		if linkKey, err = auth.DeriveKey(cfg.Line.ChannelSecret); err != nil {
			return err
		}
	}
	var links *auth.JWTManager
	if len(linkKey) > 0 {
		links = auth.NewJWTManager(linkKey, auth.LinkTokenDuration)
	} else {
		slog.Warn("No link token secret configured, myid will not issue link tokens")
	}

	lineClient, err := line.NewClient(cfg.Line.APIBaseURL, cfg.Line.ChannelAccessToken)
	if err != nil {
		return err
	}
	d := dispatch.New(svc, chain, clk)
	d.Names = lineClient
	if links != nil {
		d.Links = links
	}

	guard, closeGuard, err := newGuard(ctx, cfg, clk)
	if err != nil {
		return err
	}
	defer closeGuard()

	channel := reply.NewChannel(lineClient, guard)
	channel.OnDelivery = func(method string) {
		m.RepliesSent.WithLabelValues(method).Inc()
	}

	eng := engine.New(engine.Options{
		Store:       store,
		Dispatcher:  d,
		Services:    svc,
		Channel:     channel,
		Guard:       guard,
		Clock:       clk,
		Metrics:     m,
		BreachDelay: cfg.Ledger.BreachDelay,
		Workers:     cfg.Ledger.Workers,
	})

	webhook := line.NewWebhookHandler(cfg.Line.ChannelSecret, cfg.IsProduction(), eng.HandleEvent)
	webhook.OnSignatureFailure = m.WebhookSignatureFailures.Inc

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhook)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if !cfg.IsProduction() {
		interceptors := []connect.Interceptor{middleware.LoggingInterceptor()}
		if links != nil {
			authInterceptor := middleware.OptionalAuth(links)
			if cfg.Environment == config.Staging {
				authInterceptor = middleware.RequireAuth(links)
			}
			interceptors = append([]connect.Interceptor{authInterceptor}, interceptors...)
		}
		mux.Handle(console.NewHandler(console.NewService(eng), connect.WithInterceptors(interceptors...)))
		slog.Info("Developer console enabled", "procedure", console.ProcedureSend)
	}

	// h2c serves Connect over HTTP/2 without TLS.
	handler := h2c.NewHandler(middleware.Logging(middleware.CORS(mux)), &http2.Server{})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting",
			"address", server.Addr,
			"environment", cfg.Environment,
			"llm", cfg.LLM.Enabled(),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}

	eng.Background.Wait()
	return nil
}

func newParserChain(cfg *config.Config) (*parser.Chain, error) {
	rules := parser.DefaultRules()
	if cfg.Ledger.CategoryRulesPath != "" {
		loaded, err := parser.LoadRules(cfg.Ledger.CategoryRulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load category rules: %w", err)
		}
		rules = loaded
		slog.Info("Category rules loaded", "path", cfg.Ledger.CategoryRulesPath, "rules", len(rules))
	}

	var llm *parser.LLMParser
	if cfg.LLM.Enabled() {
		completer := parser.NewOpenAI(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
		llm = parser.NewLLMParser(completer, cfg.LLM.MinConfidence)
		slog.Info("LLM parser enabled", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
	}
	return parser.NewChain(parser.NewHeuristic(rules), llm), nil
}

// newGuard returns the Redis guard when configured, otherwise an in-memory
// one, and a function releasing it.
func newGuard(ctx context.Context, cfg *config.Config, clk clock.Clock) (reply.Guard, func(), error) {
	if cfg.Redis.URL == "" {
		return reply.NewMemoryGuard(clk), func() {}, nil
	}
	client, err := reply.ConnectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Redis guard connected", "addr", client.Options().Addr)
	return reply.NewRedisGuard(client, "lineledger:"), func() { client.Close() }, nil
}
