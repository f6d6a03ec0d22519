package commands

import (
	"github.com/spf13/cobra"
)

type profileSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	BaseURL  string `json:"base_url"`
	Auth     string `json:"auth"`
	Timeout  string `json:"timeout"`
	Selected bool   `json:"selected,omitempty"`
}

// NewProfilesCommand creates the profiles command. Credentials are never printed.
func NewProfilesCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, _ := globalOpts.profileID()

			all := globalOpts.relay.Profiles()
			out := make([]profileSummary, 0, len(all))
			for _, p := range all {
				out = append(out, profileSummary{
					ID:       p.ID,
					Name:     p.Name,
					BaseURL:  p.BaseURL,
					Auth:     p.Auth.Type,
					Timeout:  p.Timeout().String(),
					Selected: p.ID == selected,
				})
			}
			return globalOpts.printJSON(out)
		},
	}
}
