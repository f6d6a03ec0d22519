package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

// CustomerUpdateOptions holds options for the customer update command.
type CustomerUpdateOptions struct {
	*GlobalOptions

	Attrs map[string]string
	Data  string
}

// NewCustomerCommand creates the customer command group.
func NewCustomerCommand(globalOpts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customer records",
	}
	cmd.AddCommand(newCustomerUpdateCommand(globalOpts))
	return cmd
}

func newCustomerUpdateCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &CustomerUpdateOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a customer's attributes",
		Long: `Update a customer's attributes. String attributes may be given with
--attr; typed values (booleans, numbers, nested objects) with --data.
--attr values override keys of the same name in --data.`,
		Example: `  crmctl customer update WS123 --profile moengage \
    --attr email=maria@examplepet.com --data '{"moe_sub_w": true}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := opts.profileID()
			if err != nil {
				return err
			}
			attrs, err := opts.attributes()
			if err != nil {
				return err
			}
			res, err := opts.relay.UpdateCustomer(cmd.Context(), profileID, args[0], attrs)
			if err != nil {
				return err
			}
			return opts.printJSON(res)
		},
	}

	cmd.Flags().StringToStringVarP(&opts.Attrs, "attr", "a", nil, "string attribute (repeatable, key=value)")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "JSON object of attributes")
	return cmd
}

func (o *CustomerUpdateOptions) attributes() (map[string]any, error) {
	attrs := map[string]any{}
	parsed, err := parseJSON(o.Data)
	if err != nil {
		return nil, err
	}
	if parsed != nil {
		obj, ok := parsed.(map[string]any)
		if !ok {
			return nil, errors.New("--data must be a JSON object")
		}
		attrs = obj
	}
	for k, v := range o.Attrs {
		attrs[k] = v
	}
	return attrs, nil
}
