// The captchaguard command serves the settings API and runs the operator recovery
// commands against the configured settings store.
package main

import (
	"captchaguard/cmd/captchaguard/cmds"
	"captchaguard/internal/api"
	"captchaguard/internal/app"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: captchaguard [command] [args]

commands:
  serve                        run the HTTP API (default)
  update-api-key <key>         replace the API key without a self-test
  disable-login                turn off login form protection
  set-flag <setting> <bool>    set one integration flag without a self-test
  reset                        restore default settings
  show [-query <jmespath>]     print the stored settings, API key redacted
  import <file.yml>            save settings from YAML through the normal checks
  list-sites                   list sites with stored settings
`

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	setupEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subcommand := "serve"
	var rest []string
	if len(args) >= 2 {
		subcommand, rest = args[1], args[2:]
	}
	if subcommand == "help" || subcommand == "-h" || subcommand == "--help" {
		fmt.Print(usage)
		return 0
	}

	a, err := app.FromEnv(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to initialize")
		return 1
	}

	if err := dispatch(ctx, a, subcommand, rest); err != nil {
		log.WithError(err).Errorf("%s failed", subcommand)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, a *app.App, subcommand string, args []string) error {
	svc := a.Settings
	switch subcommand {
	case "serve":
		return serve(ctx, a)
	case "update-api-key":
		if len(args) != 1 {
			return fmt.Errorf(`please provide an API key: update-api-key "your-api-key"`)
		}
		if err := cmds.UpdateAPIKey(ctx, svc, args[0]); err != nil {
			return err
		}
		fmt.Println("API key updated.")
	case "disable-login":
		if err := cmds.DisableLogin(ctx, svc); err != nil {
			return err
		}
		fmt.Println("Login form protection disabled.")
	case "set-flag":
		if len(args) != 2 {
			return fmt.Errorf("usage: set-flag <setting> <bool>")
		}
		if err := cmds.SetFlag(ctx, svc, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s set to %s.\n", args[0], args[1])
	case "reset":
		if err := cmds.Reset(ctx, svc); err != nil {
			return err
		}
		fmt.Println("Settings reset to defaults.")
	case "show":
		fs := flag.NewFlagSet("show", flag.ContinueOnError)
		query := fs.String("query", "", "JMESPath expression evaluated against the stored settings")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return cmds.Show(ctx, svc, os.Stdout, *query)
	case "import":
		if len(args) != 1 {
			return fmt.Errorf("usage: import <file.yml>")
		}
		diags, err := cmds.Import(ctx, svc, args[0])
		for _, d := range diags {
			fmt.Printf("[%s] %s: %s\n", d.Severity, d.Code, d.Message)
		}
		return err
	case "list-sites":
		return cmds.ListSites(ctx, a.Store, os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", subcommand)
	}
	return nil
}

func serve(ctx context.Context, a *app.App) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	stopCh, doneCh := api.RunServerInterruptible(a.Config.Port, api.NewHandler(a))
	select {
	case err := <-doneCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
		close(stopCh)
		return <-doneCh
	}
}

func setupEnv() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})
}
