package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/api"
	"github.com/joescharf/bugboard/internal/daemon"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Run the bugboard REST API server.

Bare 'bugboard serve' runs in the foreground, same as 'bugboard serve run'.
Use 'serve start' to run it in the background and 'serve stop' to stop it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the server in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveRunCmd)
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file of the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "bugboard-serve.pid"))
}

// serveLogPath returns where the background server writes its output.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "bugboard-serve.log")
}

// serveRun serves the API until SIGINT/SIGTERM, then shuts down gracefully.
func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	port := viper.GetInt("port")

	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}

	pf := pidFile()
	if err := pf.Acquire(port); err != nil {
		return err
	}
	defer func() { _ = pf.Remove() }()

	tr := newTriager()
	if tr == nil {
		logger.Info("LLM triage disabled (set ANTHROPIC_API_KEY to enable)")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(svc, tr, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("server listening", "addr", "http://localhost"+srv.Addr, "driver", viper.GetString("storage.driver"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if info, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d, port %d)", info.PID, info.Port)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	port := viper.GetInt("port")
	args := []string{"serve", "run", "--port", fmt.Sprint(port)}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	if dryRun {
		ui.DryRunMsg("Would start %s %v", exe, args)
		return nil
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	// Wait for the child to record itself.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if info, running := pf.IsRunning(); running && info.PID == pid {
			ui.Success("Server started (PID %d) at http://localhost:%d", pid, port)
			ui.Info("Logs: %s", logPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not start; see %s", logPath)
}

func serveStopRun() error {
	pf := pidFile()
	info, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", info.PID)
		return nil
	}

	graceful, force := stopSignals()
	if err := pf.Signal(graceful); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	if !pf.WaitStopped(shutdownTimeout+time.Second, 100*time.Millisecond) {
		ui.Warning("Server did not exit in time, killing PID %d", info.PID)
		if err := pf.Signal(force); err != nil {
			return fmt.Errorf("kill server: %w", err)
		}
	}
	_ = pf.Remove()
	ui.Success("Server stopped (PID %d)", info.PID)
	return nil
}

func serveStatusRun() error {
	info, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server not running")
		return nil
	}
	ui.Success("Server running (PID %d) at http://localhost:%d", info.PID, info.Port)
	if !info.StartedAt.IsZero() {
		ui.Info("Up since %s (%s)", info.StartedAt.Local().Format(time.RFC3339), time.Since(info.StartedAt).Round(time.Second))
	}
	return nil
}
