package commands

import (
	"fmt"

	"github.com/samvad-hq/crm-relay/pkg/httpclient"
	"github.com/spf13/cobra"
)

// RequestOptions holds options for the request command.
type RequestOptions struct {
	*GlobalOptions

	Headers map[string]string
	Params  map[string]string
	Data    string
	Include bool
}

// NewRequestCommand creates the request command, a raw call through a profile.
func NewRequestCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &RequestOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "request METHOD ENDPOINT",
		Short: "Send a request to the profile's API",
		Example: `  # Read a resource
  crmctl request GET users/123 --profile insider

  # Create one with a JSON body
  crmctl request POST customer --data '{"customer_id":"WS123"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := httpclient.ParseMethod(args[0])
			if err != nil {
				return err
			}
			return runRequest(cmd, opts, method, args[1])
		},
	}

	cmd.Flags().StringToStringVarP(&opts.Headers, "header", "H", nil, "extra request header (repeatable, key=value)")
	cmd.Flags().StringToStringVarP(&opts.Params, "param", "q", nil, "query parameter (repeatable, key=value)")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "JSON request body")
	cmd.Flags().BoolVarP(&opts.Include, "include", "i", false, "print status code and headers with the body")

	return cmd
}

func runRequest(cmd *cobra.Command, opts *RequestOptions, method httpclient.Method, endpoint string) error {
	profileID, err := opts.profileID()
	if err != nil {
		return err
	}
	body, err := parseJSON(opts.Data)
	if err != nil {
		return err
	}

	resp, err := opts.relay.Call(cmd.Context(), profileID, httpclient.Request{
		Method:   method,
		Endpoint: endpoint,
		Headers:  opts.Headers,
		Body:     body,
		Params:   opts.Params,
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	if opts.Include {
		return opts.printJSON(map[string]any{
			"status_code": resp.StatusCode,
			"headers":     resp.Headers,
			"body":        resp.Body,
		})
	}
	if text, ok := resp.Body.(string); ok {
		_, err := fmt.Fprintln(opts.Out, text)
		return err
	}
	return opts.printJSON(resp.Body)
}
