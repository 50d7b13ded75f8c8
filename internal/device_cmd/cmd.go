package device_cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/furiosa-ai/furiosa-device-api/internal/config"
	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

const (
	cmdUse     = "furiosa-device"
	cmdShort   = "Inspect and allocate FuriosaAI NPUs"
	cmdExample = `furiosa-device list
furiosa-device find "warboy(2)*1"
furiosa-device --devfs /host/dev --sysfs /host/sys status 0`

	outputTable  = "table"
	outputJSON   = "json"
	outputYAML   = "yaml"
	outputCDI    = "cdi"
	outputMounts = "mounts"
)

// rootOptions is shared by every subcommand and filled in before any of them runs.
type rootOptions struct {
	configPath string
	debug      bool
	devfsRoot  string
	sysfsRoot  string

	listerOpts []device.Option
	conf       *config.Config
	logger     zerolog.Logger
}

// NewDeviceCommand builds the CLI. listerOpts are applied after the configured
// roots, for callers that need a different file type policy or prober.
func NewDeviceCommand(listerOpts ...device.Option) *cobra.Command {
	opts := &rootOptions{listerOpts: listerOpts}

	deviceCmd := &cobra.Command{
		Use:           cmdUse,
		Short:         cmdShort,
		Example:       cmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.complete(cmd.ErrOrStderr())
		},
	}

	flags := deviceCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.GlobalConfigMountPath, "path to the configuration file")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVar(&opts.devfsRoot, "devfs", "", "devfs root, overrides the configuration")
	flags.StringVar(&opts.sysfsRoot, "sysfs", "", "sysfs root, overrides the configuration")

	deviceCmd.AddCommand(
		newListCommand(opts),
		newGetCommand(opts),
		newStatusCommand(opts),
		newFindCommand(opts),
		newInfoCommand(opts),
		newWatchCommand(opts),
		newExporterCommand(opts),
	)
	return deviceCmd
}

func (o *rootOptions) complete(errOut io.Writer) error {
	conf, err := config.GetConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("couldn't parse configuration %s: %s", o.configPath, config.Describe(err))
	}
	if o.devfsRoot != "" {
		conf.DevfsRoot = o.devfsRoot
	}
	if o.sysfsRoot != "" {
		conf.SysfsRoot = o.sysfsRoot
	}
	o.conf = conf

	level := zerolog.WarnLevel
	if o.debug || conf.IsDebugMode() {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	o.logger = zerolog.New(errOut).With().Timestamp().Str("subject", cmdUse).Logger()
	return nil
}

func (o *rootOptions) lister() *device.Lister {
	opts := append(o.conf.ListerOptions(), device.WithLogger(o.logger))
	return device.NewLister(append(opts, o.listerOpts...)...)
}

// context attaches the root logger so the library logs through it.
func (o *rootOptions) context(ctx context.Context) context.Context {
	return o.logger.WithContext(ctx)
}

func validateOutput(format string, allowed ...string) error {
	if slices.Contains(allowed, format) {
		return nil
	}
	return fmt.Errorf("unsupported output format %q, expected one of %s", format, strings.Join(allowed, ", "))
}
