package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"deployctl/internal/checks"
	"deployctl/internal/config"
	"deployctl/internal/diagnostics"
	"deployctl/internal/envfile"
	"deployctl/internal/launcher"
	"deployctl/internal/logger"
)

func main() {
	app := kingpin.New("deployctl", "Deployment configuration and launch toolkit for the submission platform")
	envFile := app.Flag("env-file", "Path to the generated environment file").Default(".env").String()
	logLevel := app.Flag("log-level", "Override LOG_LEVEL from the environment file").String()

	validateCmd := app.Command("validate", "Load the deployment configuration and report every violation")

	renderCmd := app.Command("render", "Render an environment file from a YAML deployment profile")
	renderProfile := renderCmd.Arg("profile", "Path to the YAML deployment profile").Required().String()
	renderOut := renderCmd.Flag("output", "Write to a file instead of stdout").Short('o').String()
	renderDiff := renderCmd.Flag("diff", "Show drift against the current env file instead of rendering").Bool()

	checkCmd := app.Command("check", "Run deployment smoke checks against the configured services")
	checkJSON := checkCmd.Flag("json", "Emit the report as JSON").Bool()
	checkTimeout := checkCmd.Flag("timeout", "Per-check timeout").Default("10s").Duration()
	checkRetries := checkCmd.Flag("retries", "Attempts per check").Default("3").Int()

	runCmd := app.Command("run", "Launch the development server, forwarding extra arguments")
	runManage := runCmd.Flag("manage", "Management script the server command is built from").Default("manage.py").String()
	runArgs := runCmd.Arg("args", "Arguments forwarded to the server command").Strings()

	serveCmd := app.Command("serve", "Run the diagnostics server exposing /health, /ready and /metrics")
	serveAddr := serveCmd.Flag("addr", "Listen address").Default(":8877").String()
	serveInterval := serveCmd.Flag("interval", "How often to re-run the checks").Default("30s").Duration()
	serveTimeout := serveCmd.Flag("timeout", "Per-check timeout").Default("10s").Duration()

	configCmd := app.Command("config", "Configuration inspection")
	configShowCmd := configCmd.Command("show", "Print the effective configuration as YAML with secrets masked")

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	zlog, err := logger.New(logger.FromDeployment(cfg.Logging))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	switch command {
	case validateCmd.FullCommand():
		os.Exit(runValidate(cfg))
	case renderCmd.FullCommand():
		os.Exit(runRender(*renderProfile, *renderOut, *renderDiff, *envFile, zlog))
	case checkCmd.FullCommand():
		os.Exit(runChecks(cfg, *checkTimeout, *checkRetries, *checkJSON, zlog))
	case runCmd.FullCommand():
		os.Exit(runServer(cfg, *envFile, *runManage, *runArgs, zlog))
	case serveCmd.FullCommand():
		os.Exit(runServe(cfg, *serveAddr, *serveInterval, *serveTimeout, zlog))
	case configShowCmd.FullCommand():
		os.Exit(runConfigShow(cfg))
	}
}

func runValidate(cfg *config.Config) int {
	violations := cfg.Validate()
	if len(violations) == 0 {
		fmt.Println("configuration is valid")
		return 0
	}
	for _, v := range violations {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", v)
	}
	fmt.Fprintf(os.Stderr, "%d violation(s) found\n", len(violations))
	return 1
}

func runRender(profilePath, outPath string, diff bool, envPath string, zlog *zap.Logger) int {
	cfg, err := config.LoadProfile(profilePath)
	if err != nil {
		zlog.Error("Failed to load deployment profile", zap.Error(err))
		return 1
	}
	if violations := cfg.Validate(); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "invalid profile: %v\n", v)
		}
		return 1
	}

	desired := envfile.FromConfig(cfg)

	if diff {
		current, err := envfile.Load(envPath)
		if err != nil {
			zlog.Error("Failed to load current env file", zap.Error(err))
			return 1
		}
		changes := envfile.Diff(current, desired)
		if len(changes) == 0 {
			fmt.Println("no drift")
			return 0
		}
		for _, c := range changes {
			fmt.Println(c)
		}
		return 1
	}

	rendered := desired.Render()
	if outPath == "" {
		fmt.Print(rendered)
		return 0
	}
	if err := os.WriteFile(outPath, []byte(rendered), 0o600); err != nil {
		zlog.Error("Failed to write env file", zap.String("path", outPath), zap.Error(err))
		return 1
	}
	zlog.Info("Environment file written", zap.String("path", outPath))
	return 0
}

func runChecks(cfg *config.Config, timeout time.Duration, retries int, asJSON bool, zlog *zap.Logger) int {
	runner := checks.NewRunner(checks.ForConfig(cfg), zlog).
		WithTimeout(timeout).
		WithRetries(retries, 2*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := runner.Run(ctx)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			zlog.Error("Failed to encode report", zap.Error(err))
			return 1
		}
	} else {
		for _, res := range report.Results {
			line := fmt.Sprintf("%-8s %-28s %v", strings.ToUpper(string(res.Status)), res.Name, res.Elapsed.Round(time.Millisecond))
			if res.Detail != "" {
				line += "  " + res.Detail
			}
			if res.Error != "" {
				line += "  " + res.Error
			}
			fmt.Println(line)
		}
	}

	if !report.OK() {
		return 1
	}
	return 0
}

func runServer(cfg *config.Config, envPath, manage string, args []string, zlog *zap.Logger) int {
	l := &launcher.Launcher{
		EnvFile: envPath,
		Command: []string{"python", manage, "runserver", fmt.Sprintf("0.0.0.0:%d", cfg.Web.ServerPort)},
		Logger:  zlog,
	}

	code, err := l.Run(context.Background(), args)
	if err != nil {
		zlog.Error("Development server failed to run", zap.Error(err))
		if code < 0 {
			return 1
		}
	}
	return code
}

func runServe(cfg *config.Config, addr string, interval, timeout time.Duration, zlog *zap.Logger) int {
	runner := checks.NewRunner(checks.ForConfig(cfg), zlog).WithTimeout(timeout)
	server := diagnostics.NewServer(cfg, runner, addr, interval, zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		zlog.Error("Diagnostics server error", zap.Error(err))
		return 1
	}
	return 0
}

func runConfigShow(cfg *config.Config) int {
	masked := cfg.Masked()
	out, err := yaml.Marshal(masked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal configuration: %v\n", err)
		return 1
	}
	os.Stdout.Write(out)
	return 0
}
