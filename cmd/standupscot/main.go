// Command standupscot runs the standupscot slack bot. The run command serves the slack endpoints and runs the
// standup schedules. The other commands run a single step of the standup cycle and exit
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/config"
	"github.com/pkg/errors"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const name = "standupscot"

var (
	configFile string
	date       string

	v      *viper.Viper
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   name,
	Short: "A slack bot running the team's daily standups",
	Long: `standupscot prompts channel members for their daily standup, reminds late submitters
and posts the digest of all standups to the channel, grouped by team.

Configuration is read from the file given with --config and from STANDUPSCOT_ environment
variables (i.e. STANDUPSCOT_STORAGE_KIND). Outside of production, a .env file is loaded first.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the slack endpoints and run the standup schedules",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		bot, _, err := newBot(v, logger)
		if err != nil {
			return err
		}
		defer bot.Close()

		return bot.Run(cmd.Context())
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the stored channel members",
	RunE: withService(func(ctx context.Context, service *standupscot.Service, date string) (err error) {
		count, err := service.RefreshMembership(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Refreshed membership with %d members\n", count)
		return nil
	}),
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Prompt the members who haven't submitted their standup",
	RunE: withService(func(ctx context.Context, service *standupscot.Service, date string) (err error) {
		sent, err := service.PromptStandups(ctx, date)
		fmt.Printf("Prompted %d late submitters for %s\n", sent, date)

		return err
	}),
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Remind the members who still haven't submitted their standup",
	RunE: withService(func(ctx context.Context, service *standupscot.Service, date string) (err error) {
		sent, err := service.RemindLateSubmitters(ctx, date)
		fmt.Printf("Reminded %d late submitters for %s\n", sent, date)

		return err
	}),
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Post the digest of the standups to the channel",
	RunE: withService(func(ctx context.Context, service *standupscot.Service, date string) (err error) {
		return service.PostDigest(ctx, date)
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (yaml, toml or json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{promptCmd, remindCmd, digestCmd} {
		cmd.Flags().StringVar(&date, "date", "", "Standup date (YYYY-MM-DD), defaults to today in the configured time location")
	}

	rootCmd.AddCommand(runCmd, refreshCmd, promptCmd, remindCmd, digestCmd)
}

// setup loads the configuration and creates the logger
func setup(cmd *cobra.Command, args []string) (err error) {
	if err = config.LoadDotEnv(); err != nil {
		return err
	}

	v = viper.New()
	if err = config.BindEnv(v); err != nil {
		return err
	}

	if err = v.BindPFlag(config.DebugKey, cmd.Flags().Lookup("debug")); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err = v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read configuration [%s]", configFile)
		}
	}

	config.LayerConfigWithDefaults(v)

	zc := zap.NewProductionConfig()
	if v.GetBool(config.DebugKey) {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	if logger, err = zc.Build(); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	return nil
}

// withService returns a cobra run function invoking f with a service and the standup date of the --date flag
func withService(f func(ctx context.Context, service *standupscot.Service, date string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		bot, service, err := newBot(v, logger)
		if err != nil {
			return err
		}
		defer bot.Close()

		d := date
		if d == "" {
			d = bot.Today()
		}

		return f(cmd.Context(), service, d)
	}
}

// newBot wires a standupscot instance and its service with the storage, slack client and schedules configured in v
func newBot(v *viper.Viper, logger *zap.Logger) (bot *standupscot.Standupscot, service *standupscot.Service, err error) {
	token := v.GetString(config.TokenKey)
	if token == "" {
		return nil, nil, fmt.Errorf("missing slack token, set [%s] in the configuration or the STANDUPSCOT_TOKEN environment variable", config.TokenKey)
	}

	storer, err := newStorer(v)
	if err != nil {
		return nil, nil, err
	}

	client, err := chat.NewClientWithTelemetry(chat.NewSlackClient(token, slack.OptionDebug(v.GetBool(config.DebugKey))), name, otel.GetMeterProvider().Meter(name))
	if err != nil {
		storer.Close()
		return nil, nil, err
	}

	bot, service, err = wire(v, logger, storer, client)
	if err != nil {
		storer.Close()
		return nil, nil, err
	}

	return bot, service, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
