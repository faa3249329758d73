package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// runServe starts the server and blocks until it is told to stop
func runServe(cmd *cobra.Command, container *CLIContainer, flags *ServeFlags, args []string) error {
	cfg, err := resolveConfig(cmd, container, flags, args)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal, so logs are dropped while it runs
	logOut := container.Stderr
	if cfg.Dashboard {
		logOut = io.Discard
	}

	rt, err := container.NewRuntime(cfg, logOut)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	if err := rt.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := newBanner(cmd.OutOrStdout())
	var serveErr error
	if cfg.Dashboard {
		serveErr = runDashboard(ctx, rt, cfg.DisplayHost())
	} else {
		out.starting(cfg.DisplayHost(), rt.Port())
		select {
		case <-ctx.Done():
		case serveErr = <-rt.Done():
		}
	}

	out.stopping()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	out.stopped()

	return serveErr
}

// banner prints the startup and shutdown messages
type banner struct {
	out    io.Writer
	title  lipgloss.Style
	accent lipgloss.Style
	muted  lipgloss.Style
}

func newBanner(out io.Writer) *banner {
	r := lipgloss.NewRenderer(out)
	return &banner{
		out:    out,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		accent: r.NewStyle().Foreground(lipgloss.Color("39")).Underline(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (b *banner) starting(host string, port int) {
	fmt.Fprintln(b.out, b.title.Render(fmt.Sprintf("Starting Antiposta test server on port %d...", port)))
	fmt.Fprintf(b.out, "Server URL: %s\n", b.accent.Render(fmt.Sprintf("http://%s:%d", host, port)))
	fmt.Fprintln(b.out, b.muted.Render("Press Ctrl+C to stop the server"))
}

func (b *banner) stopping() {
	fmt.Fprintln(b.out, "\nShutting down server...")
}

func (b *banner) stopped() {
	fmt.Fprintln(b.out, "Server stopped.")
}
