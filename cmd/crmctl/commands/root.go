// Package commands implements the crmctl command tree.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samvad-hq/crm-relay/internal/app"
	"github.com/samvad-hq/crm-relay/internal/config"
	"github.com/samvad-hq/crm-relay/internal/logger"
	"github.com/samvad-hq/crm-relay/pkg/httpclient"
	"github.com/spf13/cobra"
)

const cliName = "crmctl"

// GlobalOptions holds flags shared by every command plus the runtime built
// from them before a command runs.
type GlobalOptions struct {
	Profile string
	EnvFile string

	Out    io.Writer
	ErrOut io.Writer

	cfg   *config.Config
	log   *logger.ZapLogger
	relay *app.Relay
}

// NewRootCommand creates the crmctl root command with all subcommands.
func NewRootCommand(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   cliName,
		Short: "Call CRM REST APIs through configured profiles",
		Long: `crmctl sends requests to CRM REST APIs (Insider, MoEngage and similar)
using the profiles defined in PROFILES_FILE.

Every call is logged as one JSON line on stderr and, when PUBLISHERS_FILE is
set, reported to the configured event publishers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Profile, "profile", "p", "",
		"profile id to call (default: DEFAULT_PROFILE, or the only configured profile)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "configs/.env",
		"dotenv file loaded before reading the environment")
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		NewRequestCommand(opts),
		NewUnsubscribeCommand(opts),
		NewCustomerCommand(opts),
		NewProfilesCommand(opts),
	)
	return cmd
}

// Execute runs the command tree with args and releases the runtime afterwards.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &GlobalOptions{Out: stdout, ErrOut: stderr}
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if closeErr := opts.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// ReportError writes err to w. HTTP failures include the status code and the
// raw response body.
func ReportError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s: %v\n", cliName, err)
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		fmt.Fprintf(w, "status: %d\n", httpErr.StatusCode)
		if body := strings.TrimSpace(httpErr.Text()); body != "" {
			fmt.Fprintf(w, "body:\n%s\n", body)
		}
	}
}

func (o *GlobalOptions) setup(ctx context.Context) error {
	if o.relay != nil {
		return nil
	}
	cfg, err := config.LoadFrom(o.EnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg
	o.log = logger.New(cfg.LogLevel, o.ErrOut)
	o.log.DebugObj("crmctl starting", "config", cfg)

	relay, err := app.NewRelay(ctx, cfg, o.log)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	o.relay = relay
	return nil
}

func (o *GlobalOptions) close() error {
	var errs []error
	if o.relay != nil {
		errs = append(errs, o.relay.Close())
	}
	if o.log != nil {
		// stderr and pipes reject fsync; nothing is buffered anyway.
		_ = o.log.Close()
	}
	return errors.Join(errs...)
}

// profileID resolves the profile to call.
func (o *GlobalOptions) profileID() (string, error) {
	if id := strings.TrimSpace(o.Profile); id != "" {
		return id, nil
	}
	if o.cfg != nil && strings.TrimSpace(o.cfg.DefaultProfile) != "" {
		return strings.TrimSpace(o.cfg.DefaultProfile), nil
	}
	if all := o.relay.Profiles(); len(all) == 1 {
		return all[0].ID, nil
	}
	return "", errors.New("--profile is required when more than one profile is configured")
}

func (o *GlobalOptions) printJSON(v any) error {
	enc := json.NewEncoder(o.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseJSON decodes a --data flag value.
func parseJSON(data string) (any, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("invalid --data JSON: %w", err)
	}
	return v, nil
}
