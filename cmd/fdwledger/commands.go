package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xraph/fdwledger/stats"
)

func (c *cli) listCmd() *cobra.Command {
	var opts stats.ListOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger rows ordered by connector name.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := c.ledger.ListStats(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only connectors whose name starts with prefix")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 = all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show the ledger row of a connector.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := c.ledger.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), row)
		},
	}
}

func (c *cli) metadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Read or replace a connector's metadata document.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print the metadata document (null when unset).",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				md, err := c.ledger.Metadata(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if md == nil {
					md = json.RawMessage("null")
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(md))
				return err
			},
		},
		&cobra.Command{
			Use:   "set <name> <json>",
			Short: "Replace the metadata document.",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.ledger.SetMetadata(cmd.Context(), args[0], json.RawMessage(args[1]))
			},
		},
		&cobra.Command{
			Use:   "clear <name>",
			Short: "Remove the metadata document.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.ledger.SetMetadata(cmd.Context(), args[0], nil)
			},
		},
	)
	return cmd
}

func (c *cli) incCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inc <name> <metric> <delta>",
		Short: "Add delta to a connector counter.",
		Long:  "Add delta to a connector counter. metric is one of create_times, rows_in, rows_out, bytes_in, bytes_out.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, delta, err := parseIncArgs(args[1], args[2])
			if err != nil {
				return err
			}
			return c.ledger.Inc(cmd.Context(), args[0], m, delta)
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the stats table on the search path when missing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			table, err := c.store.StatsTable(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		},
	}
}

func parseIncArgs(metric, delta string) (stats.Metric, int64, error) {
	m, err := stats.ParseMetric(metric)
	if err != nil {
		return 0, 0, err
	}
	d, err := strconv.ParseInt(delta, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delta %q: %w", delta, err)
	}
	return m, d, nil
}
