package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kode4food/buildprops/pkg/api"
)

func newSetCommand(opts *options) *cobra.Command {
	var kind string
	var ifAbsent bool

	cmd := &cobra.Command{
		Use:   "set RUN KEY VALUE",
		Short: "Set a property, printing the previous value",
		Long: `Set a property on a run. VALUE is parsed on the server as the
kind named by --type, which defaults to string. Supported kinds:
string, boolean, byte, short, int, long, float, double, big-integer,
big-decimal, date, local-time, local-date, local-date-time, instant,
offset-date-time, zoned-date-time.`,
		Args: exactArgs(3, "RUN KEY VALUE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := api.ParseKind(kind)
			if err != nil {
				return err
			}
			c := opts.client().Run(api.RunID(args[0]))
			res, err := c.SetText(cmd.Context(), args[1], args[2], k, ifAbsent)
			if err != nil {
				return err
			}
			if res.Previous != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(),
					api.EncodeValue(res.Previous.Value).Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Kind of the value")
	cmd.Flags().BoolVar(&ifAbsent, "if-absent", false,
		"Only set when the key has no value")
	return cmd
}

func newGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get RUN KEY",
		Short: "Print a property of a run",
		Args:  exactArgs(2, "RUN KEY"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client().Run(api.RunID(args[0]))
			p, err := c.Property(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), api.EncodeValue(p.Value).Text)
			return nil
		},
	}
}

func newAncestorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ancestor RUN KEY",
		Short: "Print a property from the most recent earlier run of the job",
		Args:  exactArgs(2, "RUN KEY"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client().Run(api.RunID(args[0]))
			p, err := c.Ancestor(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), api.EncodeValue(p.Value).Text)
			return nil
		},
	}
}

func newPropsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "props RUN",
		Short: "List every property of a run",
		Args:  exactArgs(1, "RUN"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client().Run(api.RunID(args[0]))
			props, err := c.Properties(cmd.Context())
			if err != nil {
				return err
			}
			return printProperties(cmd.OutOrStdout(), props)
		},
	}
}

func newTablesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables RUN",
		Short: "Render the properties of a run as tables",
		Args:  exactArgs(1, "RUN"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client().Run(api.RunID(args[0]))
			tables, err := c.Tables(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tables {
				if err := printTable(cmd.OutOrStdout(), t); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newCountsCommand(opts *options) *cobra.Command {
	var req api.TestCountsRequest
	var results string

	cmd := &cobra.Command{
		Use:   "counts RUN",
		Short: "Store pass and fail counts from a test results file",
		Long: `Read a JSON file of the form {"passed":[...],"failed":[...]},
where each case has a class_name and an optional age, and store
<prefix>PassedCount, <prefix>FailedCount and <prefix>FailedAge.`,
		Args: exactArgs(1, "RUN"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(results)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &req.Results); err != nil {
				return fmt.Errorf("invalid results file: %w", err)
			}
			c := opts.client().Run(api.RunID(args[0]))
			props, err := c.TestCounts(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printProperties(cmd.OutOrStdout(), props)
		},
	}
	cmd.Flags().StringVarP(&results, "results", "r", "",
		"Path to the test results JSON file")
	cmd.Flags().StringVarP(&req.KeyPrefix, "prefix", "p", "",
		"Prefix for the three count keys")
	cmd.Flags().StringVar(&req.Include, "include", "",
		"Only count class names fully matching this pattern")
	cmd.Flags().StringVar(&req.Exclude, "exclude", "",
		"Skip class names fully matching this pattern")
	cmd.Flags().BoolVar(&req.OnlyIfAbsent, "if-absent", false,
		"Only set counts that have no value")
	_ = cmd.MarkFlagRequired("results")
	return cmd
}
