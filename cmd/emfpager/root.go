package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"emfpager/internal/announce"
	"emfpager/internal/app"
	"emfpager/internal/config"
)

type runFunc func(ctx context.Context, cfgm *config.Manager) error

// flagValues holds the raw flag values; only flags the user set are applied.
type flagValues struct {
	configPath string
	apiURL     string
	username   string
	password   string
	preEvent   int
	dryRun     bool
	obsAddr    string
	logLevel   string
	rubric     string
	recipients []string
}

func newRootCmd(run runFunc) *cobra.Command {
	fv := &flagValues{}
	def := config.Default()

	root := &cobra.Command{
		Use:   "emfpager",
		Short: "Announce EMF schedule events to DAPNET pagers",
		Long: "emfpager polls the EMF schedule and sends a DAPNET page shortly before each event starts.\n" +
			"Without a subcommand the mode comes from the config file (default: rubric).",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, fv, run, nil)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "Path to a JSON or YAML config file (optional)")
	pf.StringVar(&fv.apiURL, "api-url", def.APIURL, "EMF schedule API URL")
	pf.StringVar(&fv.username, "dapnet-username", "", "DAPNET username (also the startup page recipient)")
	pf.StringVar(&fv.password, "dapnet-password", "", "DAPNET password")
	pf.IntVar(&fv.preEvent, "pre-event-announcement-time", config.DefaultPreEventSeconds, "Seconds before an event starts to announce it")
	pf.BoolVar(&fv.dryRun, "dry-run", false, "Log announcements instead of sending them")
	pf.StringVar(&fv.obsAddr, "observability-address", def.Observability.Addr, "Listen address for /metrics, /healthz and /status")
	pf.StringVar(&fv.logLevel, "log-level", def.Logging.Level, "Log level: trace|debug|info|warn|error")

	rubric := &cobra.Command{
		Use:   "rubric",
		Short: "Post events as news to a DAPNET rubric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, fv, run, func(c *config.Config, flags *pflag.FlagSet) {
				c.Mode.Kind = string(announce.TargetRubric)
				if flags.Changed("rubric") {
					c.Mode.Rubric = fv.rubric
				}
			})
		},
	}
	rubric.Flags().StringVar(&fv.rubric, "rubric", def.Mode.Rubric, "Rubric name")

	call := &cobra.Command{
		Use:     "call",
		Short:   "Page events to individual callsigns",
		Example: "  emfpager --dapnet-username m0abc call --recipient m0abc --recipient m0xyz",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, fv, run, func(c *config.Config, flags *pflag.FlagSet) {
				c.Mode.Kind = string(announce.TargetCall)
				if flags.Changed("recipient") {
					c.Mode.Recipients = append([]string(nil), fv.recipients...)
				}
			})
		},
	}
	call.Flags().StringArrayVar(&fv.recipients, "recipient", nil, "Callsign to page (repeatable)")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "emfpager", app.Version)
			return err
		},
	}

	root.AddCommand(rubric, call, version)
	return root
}

// execute builds the config manager with an overlay that applies explicitly
// set flags on top of file and environment, then runs.
func execute(cmd *cobra.Command, fv *flagValues, run runFunc, mode func(*config.Config, *pflag.FlagSet)) error {
	flags := cmd.Flags()
	cfgm := config.NewManager(fv.configPath)
	cfgm.SetOverlay(func(c *config.Config) {
		if flags.Changed("api-url") {
			c.APIURL = fv.apiURL
		}
		if flags.Changed("dapnet-username") {
			c.DAPNET.Username = fv.username
		}
		if flags.Changed("dapnet-password") {
			c.DAPNET.Password = fv.password
		}
		if flags.Changed("pre-event-announcement-time") {
			c.PreEventAnnouncementTime = fv.preEvent
		}
		if flags.Changed("dry-run") {
			c.DryRun = fv.dryRun
		}
		if flags.Changed("observability-address") {
			c.Observability.Addr = fv.obsAddr
		}
		if flags.Changed("log-level") {
			c.Logging.Level = fv.logLevel
		}
		if mode != nil {
			mode(c, flags)
		}
	})
	return run(cmd.Context(), cfgm)
}
