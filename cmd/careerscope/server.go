package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/careerscope/careerscope/internal/api"
	"github.com/careerscope/careerscope/internal/config"
	"github.com/careerscope/careerscope/internal/ingest"
	"github.com/careerscope/careerscope/internal/jobsearch"
	"github.com/careerscope/careerscope/internal/keywords"
	"github.com/careerscope/careerscope/internal/payroll"
	"github.com/careerscope/careerscope/internal/storage"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and optionally the MCP stdio server) in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and dataset status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
	rootCmd.AddCommand(stopCmd)
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "careerscope.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// loadExtractor builds the keyword whitelist from the configured file, or
// from the keywords of the stored postings when no file is set.
func loadExtractor(ctx context.Context, cfg config.Config, store *storage.Store) (*keywords.Extractor, error) {
	if cfg.Search.KeywordsFile != "" {
		words, err := keywords.LoadWhitelist(cfg.Search.KeywordsFile)
		if err != nil {
			return nil, err
		}
		return keywords.NewExtractor(words), nil
	}
	words, err := store.PostingKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading posting keywords: %w", err)
	}
	return keywords.NewExtractor(words), nil
}

// refreshExtractor rebuilds the search whitelist from the stored posting
// keywords after an import.
func refreshExtractor(ctx context.Context, store *storage.Store, search *jobsearch.Engine) {
	words, err := store.PostingKeywords(ctx)
	if err != nil {
		slog.Error("rebuilding keyword whitelist", "error", err)
		return
	}
	search.SetExtractor(keywords.NewExtractor(words))
	slog.Info("keyword whitelist rebuilt", "keywords", search.Extractor().Len())
}

func importFiles(cfg config.Config) ingest.Files {
	return ingest.Files{
		Postings: cfg.Import.PostingsFile,
		Payroll:  cfg.Import.PayrollFile,
		Users:    cfg.Import.UsersFile,
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "careerscope version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get("http://" + cfg.Addr() + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on %s", cfg.Addr())
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	extractor, err := loadExtractor(ctx, cfg, store)
	if err != nil {
		return err
	}

	search := jobsearch.New(store, extractor)
	analyzer := payroll.New(store,
		payroll.WithTransitionLimit(cfg.Transitions.Limit),
		payroll.WithPageSize(cfg.Advanced.PageSize),
	)

	if cfg.Import.Schedule != "" {
		sched := ingest.NewScheduler(ingest.NewImporter(store), importFiles(cfg), cfg.Import.Schedule)
		if cfg.Search.KeywordsFile == "" {
			sched.OnRun(func(_ []ingest.Report, err error) {
				if err != nil {
					return
				}
				refreshExtractor(ctx, store, search)
			})
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	} else if search.Extractor().Len() == 0 {
		slog.Warn("keyword whitelist is empty; resume keywords will not be recognized")
	}

	if cfg.API.Token == "" {
		slog.Warn("api.token is not set; the HTTP API accepts unauthenticated requests")
	}
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewHandler(api.Deps{
			Search:  search,
			Payroll: analyzer,
			Records: store,
			Token:   cfg.API.Token,
		}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Search: search, Payroll: analyzer}, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "careerscope listening on %s\n", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("stopping careerscope (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to careerscope (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + cfg.Addr() + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", cfg.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printStatus("Storage", "unavailable: %v", err)
		return nil
	}
	defer store.Close()

	counts := []struct {
		label string
		count func(context.Context) (int, error)
	}{
		{"Postings", store.CountAllPostings},
		{"Payroll records", store.CountAllPayroll},
		{"Users", store.CountAllUsers},
	}
	for _, c := range counts {
		n, err := c.count(ctx)
		if err != nil {
			printStatus(c.label, "error: %v", err)
			continue
		}
		printStatus(c.label, "%d", n)
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if cfg.Import.Schedule != "" {
		printStatus("Import schedule", "%s", cfg.Import.Schedule)
	}
	return nil
}
