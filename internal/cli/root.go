package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/loadcheck/internal/config"
)

var version = "0.1.0"

// NewRootCmd builds the command tree. Every call gets its own viper
// instance, so commands can be executed repeatedly in tests.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:     "loadcheck",
		Short:   "Arrival-rate load testing for a single HTTP endpoint",
		Version: version,
		Long: `Loadcheck drives one HTTP endpoint at a constant or ramping arrival rate,
classifies every response by latency and status, writes a JSON summary of
the run and renders it as a Markdown report.

Settings come from flags, LOADCHECK_* environment variables, or the
legacy variable names (choose_scenario, API_ENDPOINT, TARGET_RPS, ...).`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	bindSettingsFlags(rootCmd, v)

	rootCmd.AddCommand(newRunCmd(v))
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newProfileCmd(v))

	return rootCmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// bindSettingsFlags registers the run settings as persistent flags and
// binds each one to its viper key. Flag defaults mirror the viper defaults
// so help output stays truthful.
func bindSettingsFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.String("scenario", v.GetString(config.KeyScenario), "Load scenario: constant_arrival_rate or ramping_arrival_rate")
	f.String("sub-scenario", v.GetString(config.KeySubScenario), "Sub-scenario, e.g. steady_smoke_test, stress, spike")
	f.StringP("env", "e", v.GetString(config.KeyEnvironment), "Target environment name")
	f.String("endpoint", v.GetString(config.KeyEndpoint), "Endpoint path under the API prefix")
	f.StringP("method", "X", v.GetString(config.KeyMethod), "HTTP method (GET or POST)")
	f.String("payload", v.GetString(config.KeyPayload), "Request body for POST")
	f.String("payload-type", v.GetString(config.KeyPayloadType), "Body content type")
	f.Bool("login-mode", v.GetBool(config.KeyLoginMode), "Log in at the start of every iteration")
	f.Bool("perform-login", v.GetBool(config.KeyPerformLogin), "Log in once before the run starts")
	f.String("email", v.GetString(config.KeyEmail), "Login email")
	f.String("password", v.GetString(config.KeyPassword), "Login password")
	f.String("user-id", v.GetString(config.KeyUserID), "User id sent when no login supplies one")
	f.Float64("target-rps", v.GetFloat64(config.KeyTargetRPS), "Target requests per second")
	f.Float64("target-response-ms", v.GetFloat64(config.KeyTargetResponseMs), "Target response time in milliseconds")
	f.Int("constant-vus", v.GetInt(config.KeyConstantVUs), "Fixed VU count; 0 derives it from the targets")
	f.Duration("timeout", v.GetDuration(config.KeyRequestTimeout), "Per-request timeout")
	f.String("environments", v.GetString(config.KeyEnvironmentsFile), "YAML environments catalogue (built-in when empty)")
	f.String("log-level", v.GetString(config.KeyLogLevel), "Log level")
	f.String("log-format", v.GetString(config.KeyLogFormat), "Log encoding: console or json")

	flagKeys := map[string]string{
		"scenario":           config.KeyScenario,
		"sub-scenario":       config.KeySubScenario,
		"env":                config.KeyEnvironment,
		"endpoint":           config.KeyEndpoint,
		"method":             config.KeyMethod,
		"payload":            config.KeyPayload,
		"payload-type":       config.KeyPayloadType,
		"login-mode":         config.KeyLoginMode,
		"perform-login":      config.KeyPerformLogin,
		"email":              config.KeyEmail,
		"password":           config.KeyPassword,
		"user-id":            config.KeyUserID,
		"target-rps":         config.KeyTargetRPS,
		"target-response-ms": config.KeyTargetResponseMs,
		"constant-vus":       config.KeyConstantVUs,
		"timeout":            config.KeyRequestTimeout,
		"environments":       config.KeyEnvironmentsFile,
		"log-level":          config.KeyLogLevel,
		"log-format":         config.KeyLogFormat,
	}
	for name, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(name))
	}
}
