package main

import (
	"context"
	"fmt"
	"os"
	"time"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	sdkopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/agentflow/agentflow/artifact"
	"github.com/agentflow/agentflow/config"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/logging"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/model/anthropic"
	"github.com/agentflow/agentflow/model/openai"
	"github.com/agentflow/agentflow/session"
	"github.com/agentflow/agentflow/telemetry"
)

// app bundles what every command needs: the loaded configuration, the
// structured logger and the persistence backends. Shutdown hooks accumulate
// as resources are opened and run in reverse order on Close.
type app struct {
	cfg    *config.Config
	logger *logging.AgentFlowLogger

	sessions  core.SessionStore
	artifacts core.ArtifactStore

	shutdown []func() error
}

// newApp loads configuration from the --config flag (plus AGENTFLOW_
// environment overrides) and opens the logger, telemetry and stores.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewSlogLogger(level, cfg.Log.Format, false),
	}

	if cfg.Telemetry.Enabled {
		stopTelemetry, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
			Exporter: cfg.Telemetry.Exporter,
			Endpoint: cfg.Telemetry.Endpoint,
			Insecure: cfg.Telemetry.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		a.shutdown = append(a.shutdown, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return stopTelemetry(ctx)
		})
	}

	if err := a.openStores(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStores() error {
	switch a.cfg.Store.Backend {
	case "sqlite":
		sessions, err := session.NewSQLiteStore(a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		a.shutdown = append(a.shutdown, sessions.Close)

		artifacts, err := artifact.NewSQLiteStore(a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("open artifact store: %w", err)
		}
		a.shutdown = append(a.shutdown, artifacts.Close)

		a.sessions = sessions
		a.artifacts = artifacts
	default:
		a.sessions = session.NewInMemoryStore()
		a.artifacts = artifact.NewInMemoryStore()
	}
	return nil
}

// Close runs shutdown hooks in reverse registration order.
func (a *app) Close() {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](); err != nil {
			a.logger.Warn("shutdown hook failed", "error", err)
		}
	}
}

// model builds the configured language model provider. The API key is read
// from the environment variable named in model.api_key_env; when it is empty
// the provider SDK falls back to its own default variable.
func (a *app) model() (model.Model, error) {
	name := a.cfg.Model.Name
	key := os.Getenv(a.cfg.Model.APIKeyEnv)

	switch a.cfg.Model.Provider {
	case "openai":
		var optFns []func(o *openai.Options)
		if name != "" {
			optFns = append(optFns, func(o *openai.Options) { o.Model = name })
		}
		if key != "" {
			client := sdkopenai.NewClient(option.WithAPIKey(key))
			return openai.NewModelFromClient(&client, optFns...), nil
		}
		return openai.NewModel(optFns...), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if name != "" {
				o.Model = sdkanthropic.Model(name)
			}
			if key != "" {
				o.APIKey = key
			}
		}), nil
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", a.cfg.Model.Provider)
	}
}
