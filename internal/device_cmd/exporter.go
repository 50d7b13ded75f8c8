package device_cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/furiosa-ai/furiosa-device-api/internal/config"
	"github.com/furiosa-ai/furiosa-device-api/internal/exporter"
)

func newExporterCommand(opts *rootOptions) *cobra.Command {
	exporterCmd := &cobra.Command{
		Use:   "exporter",
		Short: "Serve NPU liveness, heartbeat and core status as Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startExporter(opts.context(cmd.Context()), opts)
		},
	}
	return exporterCmd
}

func startExporter(ctx context.Context, opts *rootOptions) error {
	logger := opts.logger.With().Str("subject", "exporter").Logger()
	ctx, cancel := context.WithCancel(logger.WithContext(ctx))
	defer cancel()

	//os signal listener
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	//http server error listener
	httpErrChan := make(chan error, 1)

	confUpdateChan := make(chan *config.ChangeEvent, 1)
	if _, err := config.GetConfigWithWatcher(ctx, opts.configPath, confUpdateChan); err != nil {
		logger.Err(err).Msg("couldn't watch configuration")
		return err
	}

	collector := exporter.NewCollector(opts.lister(), opts.conf.Exporter.CollectTimeout, logger)
	server := exporter.NewServerWithContext(ctx, opts.conf.Exporter.ListenAddress, collector)
	if err := server.StartWithContext(ctx, httpErrChan); err != nil {
		logger.Err(err).Msg("couldn't start exporter")
		return err
	}

	logger.Info().Msg("start event loop")

	var loopErr error
Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		case sig := <-sigChan:
			logger.Info().Msg(fmt.Sprintf("signal %d received.", sig))
			break Loop
		case httpErr := <-httpErrChan:
			logger.Err(httpErr).Msg("error received from http server error channel")
			loopErr = httpErr
			break Loop
		case confChangedEvent := <-confUpdateChan:
			if confChangedEvent.IsError {
				logger.Error().Msg(fmt.Sprintf("failed to watch file %s: %s, stopping exporter", confChangedEvent.Filename, confChangedEvent.Detail))
			} else {
				logger.Info().Msg(fmt.Sprintf("configuration file %s has been changed: %s, stopping exporter", confChangedEvent.Filename, confChangedEvent.Detail))
			}
			break Loop
		}
	}

	logger.Info().Msg("stopping exporter")
	if err := server.Stop(); err != nil {
		return err
	}
	return loopErr
}
