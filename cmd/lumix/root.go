package main

import (
	"github.com/spf13/cobra"
	"github.com/vsariola/lumix/config"
	"github.com/vsariola/lumix/logging"
	"go.uber.org/zap"
)

var (
	configPath string
	envPath    string
	logLevel   string

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "lumix",
	Short:         "Lumix plays and renders multi-track arrangements of audio and MIDI clips.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath, envPath); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(c *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "lumix.yml", "YAML configuration file; missing is fine")
	f.StringVar(&envPath, "env", ".env", "file of LUMIX_* variables overriding the configuration")
	f.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}
