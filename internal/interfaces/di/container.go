package di

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"antiposta.dev/testserver/internal/application/ports"
	"antiposta.dev/testserver/internal/application/services"
	"antiposta.dev/testserver/internal/config"
	"antiposta.dev/testserver/internal/core/render"
	"antiposta.dev/testserver/internal/core/request"
	httpserver "antiposta.dev/testserver/internal/infrastructure/http"
	"antiposta.dev/testserver/internal/interfaces/cli"
	"antiposta.dev/testserver/internal/logging"
	"antiposta.dev/testserver/internal/monitoring"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Core
	Decoder   *request.Decoder
	Renderer  *render.Renderer
	Inspector ports.RequestInspector

	// Application
	EchoService *services.EchoService

	// Infrastructure
	Server *httpserver.Server
	Feed   *monitoring.Feed

	// Logger
	Logger *zap.Logger
}

// NewContainer wires the server described by cfg. Logs go to logOut.
func NewContainer(cfg *config.Config, logOut io.Writer) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	logger, err := logging.New(level, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	container := &Container{
		Config: cfg,
		Logger: logger,
	}
	container.initializeComponents()

	return container, nil
}

// initializeComponents initializes all components with proper dependencies
func (c *Container) initializeComponents() {
	// 1. Core domain
	c.Decoder = request.NewDecoder()
	c.Renderer = render.NewRenderer(c.Config.ServerName)
	c.Renderer.RawHTML = c.Config.RawHTML
	if c.Config.Debug {
		c.Inspector = logging.NewDumpInspector(c.Logger)
	}

	// 2. Application service
	c.EchoService = services.NewEchoService(c.Decoder, c.Renderer, c.Inspector)

	// 3. Transport
	opts := httpserver.Options{
		Addr:              c.Config.Addr(),
		ReadHeaderTimeout: c.Config.ReadHeaderTimeout,
		Logger:            c.Logger.Sugar(),
	}
	if c.Config.Dashboard {
		c.Feed = monitoring.NewFeed(monitoring.DefaultFeedSize)
		opts.Observer = c.Feed
	}
	c.Server = httpserver.NewServer(c.EchoService, opts)
}

// Start begins serving
func (c *Container) Start() error {
	if err := c.Server.Start(); err != nil {
		return err
	}
	c.Logger.Debug("Listening", zap.String("addr", c.Server.Addr()))
	return nil
}

// Port returns the bound port
func (c *Container) Port() int {
	return c.Server.Port()
}

// Done reports the serve loop ending
func (c *Container) Done() <-chan error {
	return c.Server.Done()
}

// LiveFeed returns the dashboard feed, nil when the dashboard is off
func (c *Container) LiveFeed() *monitoring.Feed {
	return c.Feed
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.Server.Shutdown(ctx)
	if c.Feed != nil {
		c.Feed.Close()
	}
	_ = c.Logger.Sync()
	return err
}

// NewCLIContainer returns the command dependencies for the real process
func NewCLIContainer() *cli.CLIContainer {
	return &cli.CLIContainer{
		LoadConfig: config.Load,
		NewRuntime: func(cfg *config.Config, logOut io.Writer) (cli.Runtime, error) {
			container, err := NewContainer(cfg, logOut)
			if err != nil {
				return nil, err
			}
			return container, nil
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
