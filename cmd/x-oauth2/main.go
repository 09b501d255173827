// Command x-oauth2 runs the X OAuth 2.0 authorization code flow with PKCE from
// the command line.
//
// Usage:
//
//	x-oauth2 authorize [flags]                       print an authorization URL, state and verifier
//	x-oauth2 exchange --code C --verifier V [flags]  exchange a code for tokens
//	x-oauth2 login [flags]                           full flow with a local callback server
//
// Configuration is read from --config (YAML), --env-file (.env) and XOAUTH_*
// environment variables, e.g. XOAUTH_CLIENT_ID and XOAUTH_RETRY_MAX_ATTEMPTS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	oauth "github.com/giantswarm/x-oauth2"
	"github.com/giantswarm/x-oauth2/instrumentation"
	"github.com/giantswarm/x-oauth2/internal/config"
	"github.com/giantswarm/x-oauth2/pkce"
)

const usage = `usage: x-oauth2 <authorize|exchange|login> [flags]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if code := oauth.ErrorCode(err); code != "" {
			fmt.Fprintln(os.Stderr, "provider error code:", code)
		}
		os.Exit(1)
	}
}

// options are the flags shared by all subcommands.
type options struct {
	configFile string
	envFile    string
	state      string
	code       string
	verifier   string
	timeout    time.Duration
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	command := args[0]

	var opts options
	flags := pflag.NewFlagSet(command, pflag.ContinueOnError)
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded into the environment")
	flags.StringVar(&opts.state, "state", "", "state for the authorization URL (default: random UUID)")
	flags.StringVar(&opts.code, "code", "", "authorization code from the callback")
	flags.StringVar(&opts.verifier, "verifier", "", "PKCE verifier printed by authorize")
	flags.DurationVar(&opts.timeout, "login-timeout", 5*time.Minute, "how long login waits for the callback")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{ConfigFile: opts.configFile, EnvFile: opts.envFile})
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	inst, err := newInstrumentation(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down instrumentation", "error", err)
		}
	}()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	clientCfg.Logger = logger
	clientCfg.Instrumentation = inst

	client, err := oauth.NewClient(clientCfg)
	if err != nil {
		return err
	}

	switch command {
	case "authorize":
		return runAuthorize(client, opts, out)
	case "exchange":
		return runExchange(ctx, client, opts, out)
	case "login":
		return runLogin(ctx, client, cfg.RedirectURI, opts, logger, out)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func newInstrumentation(ctx context.Context, cfg *config.Config) (*instrumentation.Instrumentation, error) {
	if !cfg.Telemetry.Enabled {
		return instrumentation.New(instrumentation.Config{ServiceName: cfg.Telemetry.ServiceName})
	}
	return instrumentation.NewOTLP(ctx,
		instrumentation.Config{ServiceName: cfg.Telemetry.ServiceName},
		instrumentation.OTLPConfig{Endpoint: cfg.Telemetry.Endpoint, Insecure: cfg.Telemetry.Insecure},
	)
}

// authorizeOutput is printed by the authorize command
type authorizeOutput struct {
	URL      string `json:"url"`
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

func runAuthorize(client *oauth.Client, opts options, out io.Writer) error {
	state := opts.state
	if state == "" {
		state = oauth.NewState()
	}
	authURL, verifier, err := client.AuthorizationURL(state)
	if err != nil {
		return err
	}
	return writeJSON(out, authorizeOutput{URL: authURL, State: state, Verifier: string(verifier)})
}

func runExchange(ctx context.Context, client *oauth.Client, opts options, out io.Writer) error {
	if opts.code == "" || opts.verifier == "" {
		return errors.New("--code and --verifier are required")
	}
	token, err := client.Exchange(ctx, opts.code, pkce.Verifier(opts.verifier))
	if err != nil {
		return err
	}
	return writeJSON(out, token)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
