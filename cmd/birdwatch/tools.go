package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) toolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the enabled capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			descriptors := a.dispatcher.List()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(descriptors)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE\tDESCRIPTION")
			for _, d := range descriptors {
				summary, _, _ := strings.Cut(d.Description, "\n")
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Title, summary)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print descriptors with their input schemas as JSON")
	return cmd
}

func (c *cli) callCmd() *cobra.Command {
	var rawArgs string

	cmd := &cobra.Command{
		Use:   "call NAME",
		Short: "Invoke one capability and print its result envelope",
		Example: `  birdwatch call search_tweets --args '{"query": "from:nasa", "max_results": 20}'
  birdwatch call analyze_tweet_sentiment --args '{"text": "what a great launch"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			result := a.dispatcher.InvokeJSON(ctx, args[0], json.RawMessage(rawArgs))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}

			if !result.OK {
				return errCallFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rawArgs, "args", "a", "{}", "Arguments as a JSON object")
	return cmd
}
