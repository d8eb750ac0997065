package main

import (
	"context"

	_ "embed"

	"go.uber.org/fx"

	usecase "github.com/tigerroll/burstbuf/pkg/bb/core/application/usecase"
	config "github.com/tigerroll/burstbuf/pkg/bb/core/config"
	locks "github.com/tigerroll/burstbuf/pkg/bb/core/locks"
	coremetrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
	agent "github.com/tigerroll/burstbuf/pkg/bb/engine/agent"
	inframetrics "github.com/tigerroll/burstbuf/pkg/bb/infrastructure/metrics"
	inmemory "github.com/tigerroll/burstbuf/pkg/bb/infrastructure/registry/inmemory"
	statefile "github.com/tigerroll/burstbuf/pkg/bb/infrastructure/statefile"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"
)

// embeddedConfig holds the contents of the application YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// registerLifecycle wires state recovery and the background agent into the Fx
// application lifecycle. Recovery runs before the agent starts; shutdown joins
// the agent (which writes the final checkpoint) before shared state is torn down.
func registerLifecycle(
	lc fx.Lifecycle,
	service *usecase.BufferService,
	bbAgent *agent.Agent,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := service.LoadState(ctx); err != nil {
				// Failing loud beats silently losing allocation state.
				return err
			}
			bbAgent.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Shutting down burst buffer engine...")
			return service.Shutdown(ctx)
		},
	})
}

func main() {
	app := fx.New(
		logger.Module,
		fx.Supply(config.EmbeddedConfig(embeddedConfig)),
		config.Module,
		locks.Module,
		inmemory.Module,
		coremetrics.Module,
		inframetrics.Module,
		statefile.Module,
		agent.Module,
		usecase.Module,
		fx.Invoke(registerLifecycle),
	)

	app.Run()
}
