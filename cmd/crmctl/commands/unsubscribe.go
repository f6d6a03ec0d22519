package commands

import (
	"errors"

	"github.com/samvad-hq/crm-relay/internal/app"
	"github.com/spf13/cobra"
)

// UnsubscribeOptions holds options for the unsubscribe command.
type UnsubscribeOptions struct {
	*GlobalOptions

	Force bool
}

// NewUnsubscribeCommand creates the unsubscribe command.
func NewUnsubscribeCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &UnsubscribeOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "unsubscribe EMAIL...",
		Short: "Unsubscribe email addresses",
		Long: `Unsubscribe one or more email addresses through the profile's API.

Addresses already unsubscribed within STORAGE_TTL_SECONDS are skipped.
Use --force to send them again.`,
		Example: `  crmctl unsubscribe sample@useinsider.com --profile insider`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := opts.profileID()
			if err != nil {
				return err
			}

			results := make([]app.Result, 0, len(args))
			var errs []error
			for _, email := range args {
				res, err := opts.relay.Unsubscribe(cmd.Context(), profileID, email, opts.Force)
				if err != nil {
					errs = append(errs, err)
				}
				results = append(results, res)
			}
			if err := opts.printJSON(results); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "send even if already delivered")
	return cmd
}
