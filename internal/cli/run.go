package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadcheck/internal/aggregate"
	"github.com/wesleyorama2/loadcheck/internal/auth"
	"github.com/wesleyorama2/loadcheck/internal/classifier"
	"github.com/wesleyorama2/loadcheck/internal/config"
	lchttp "github.com/wesleyorama2/loadcheck/internal/http"
	"github.com/wesleyorama2/loadcheck/internal/loadgen"
	"github.com/wesleyorama2/loadcheck/internal/logging"
	"github.com/wesleyorama2/loadcheck/internal/metrics"
	"github.com/wesleyorama2/loadcheck/internal/output"
	"github.com/wesleyorama2/loadcheck/internal/profile"
	"github.com/wesleyorama2/loadcheck/internal/report"
)

const progressInterval = time.Second

type runOptions struct {
	noColor   bool
	quiet     bool
	render    bool
	reportDir string
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test and write the summary snapshot",
		Long: `Run a load test against one endpoint and write the end-of-run snapshot.

Examples:
  loadcheck run --scenario constant_arrival_rate --sub-scenario steady_smoke_test \
    --endpoint v1/orders --target-rps 29

  choose_scenario=ramping_arrival_rate choose_sub_scenario=stress \
    API_ENDPOINT=v1/orders loadcheck run --report

A run aborted after too many non-200 responses still writes its snapshot
and exits successfully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, v, opts)
		},
	}

	cmd.Flags().String("summary", v.GetString(config.KeySummary), "Path of the JSON summary snapshot")
	_ = v.BindPFlag(config.KeySummary, cmd.Flags().Lookup("summary"))

	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress header and progress output")
	cmd.Flags().BoolVar(&opts.render, "report", false, "Render the Markdown report after the run")
	cmd.Flags().StringVar(&opts.reportDir, "out", "out", "Report output directory")

	return cmd
}

func runLoadTest(cmd *cobra.Command, v *viper.Viper, opts *runOptions) error {
	settings, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logger, err := logging.NewWithWriters(settings.LogLevel, settings.LogFormat, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Sync()

	catalogue, err := config.LoadEnvironments(settings.EnvironmentsFile)
	if err != nil {
		return err
	}
	env, err := catalogue.Lookup(settings.Environment)
	if err != nil {
		return err
	}
	if settings.UserID != "" {
		env.UserID = settings.UserID
	}

	desc := settings.Descriptor()
	prof, err := profile.Build(desc)
	if err != nil {
		return err
	}

	body, err := config.ResolvePayload(settings.Method, settings.PayloadType, settings.Payload)
	if err != nil {
		var payloadErr *config.PayloadError
		if !errors.As(err, &payloadErr) {
			return err
		}
		logger.Warn("payload rejected, sending fallback body",
			zap.String("payload_type", payloadErr.Type),
			zap.String("reason", payloadErr.Reason),
			zap.String("fallback", payloadErr.Fallback),
		)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reg := metrics.NewRegistry()
	client := lchttp.NewClient(
		lchttp.WithBaseURL(env.APIBase()),
		lchttp.WithHeader("User-Agent", "loadcheck/"+version),
		lchttp.WithTimeout(settings.RequestTimeout),
		lchttp.WithByteCounter(loadgen.NewWireCounter(reg)),
		lchttp.WithMaxConnsPerHost(prof.MaxVUs),
	)
	defer client.CloseIdleConnections()

	authenticator := auth.New(client, env, settings.Email, settings.Password, logger)

	var identity auth.Identity
	if settings.SetupLogin() {
		identity, err = authenticator.Login(ctx)
		if err != nil {
			logger.Error("setup login failed, continuing without a token", zap.Error(err))
			identity = auth.Identity{}
		}
	}

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: opts.noColor,
		Quiet:   opts.quiet,
	})

	runner := loadgen.NewRunner(prof, reg, logger,
		loadgen.WithProgress(progressInterval, console.PrintProgress),
	)

	cls := classifier.New(&classifier.RunContext{
		Registry:   reg,
		Descriptor: desc,
		Aborter:    runner,
		Logger:     logger,
	})

	iterCfg := loadgen.HTTPIterationConfig{
		Client:      client,
		Classifier:  cls,
		Registry:    reg,
		Environment: env,
		Endpoint:    settings.Endpoint,
		Method:      settings.Method,
		Body:        body,
		Identity:    identity,
		Logger:      logger,
	}
	if settings.LoginMode {
		iterCfg.Login = authenticator.Login
	}

	logger.Info("starting load test",
		zap.String("scenario", string(desc.Name)),
		zap.String("sub_scenario", string(desc.SubScenario)),
		zap.String("environment", settings.Environment),
		zap.String("target", env.TargetURL(settings.Endpoint)),
		zap.String("executor", string(prof.Type)),
		zap.Int("max_vus", prof.MaxVUs),
	)
	console.PrintHeader(string(desc.Name), string(prof.Type), prof.TotalDuration())

	result, runErr := runner.Run(ctx, loadgen.NewHTTPIteration(iterCfg))

	var abortErr *loadgen.AbortError
	switch {
	case runErr == nil:
	case errors.As(runErr, &abortErr):
		logger.Warn("run aborted", zap.String("reason", abortErr.Reason))
		runErr = nil
	default:
		logger.Error("run interrupted", zap.Error(runErr))
	}

	info := aggregate.NewRunInfo(desc, settings.Environment, settings.Endpoint, settings.GivenVUs())
	snapshot := aggregate.Aggregate(reg, cls.State(), info, result.Duration)
	if err := aggregate.WriteFile(settings.Summary, snapshot); err != nil {
		return err
	}

	console.PrintSummary(snapshot)
	logger.Info("summary written",
		zap.String("path", settings.Summary),
		zap.Int64("iterations", result.Iterations),
		zap.Int64("dropped", result.Dropped),
		zap.Int64("scheduled", result.Scheduled),
	)

	if opts.render {
		path, err := report.Render(settings.Summary, opts.reportDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	}

	return runErr
}
