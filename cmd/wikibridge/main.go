package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wikibridge/pkg/config"
	"wikibridge/pkg/extentity"
	"wikibridge/pkg/version"
)

const defaultConfigPath = "configs/wikibridge.yaml"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:           "wikibridge",
		Short:         "Wikibase external entity bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file, ignored when missing")

	cmd.AddCommand(
		serveCmd(&configPath),
		cronCmd(&configPath),
		fetchCmd(&configPath),
		queryCmd(&configPath),
		initConfigCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "wikibridge version %s\n", version.Version)
			},
		},
	)
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the queue scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				return a.serve(cmd.Context())
			})
		},
	}
}

func cronCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run one pass over the retrack and index queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				err := a.scheduler.RunOnce(cmd.Context())
				for _, j := range a.jobs {
					st := j.LastStats()
					fmt.Fprintf(cmd.OutOrStdout(), "%s: processed=%d failed=%d discarded=%d\n", j.Name(), st.Processed, st.Failed, st.Discarded)
				}
				return err
			})
		},
	}
}

func fetchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <entity-type> <id>",
		Short: "Load one external entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				e, err := a.registry.Load(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if e == nil {
					return fmt.Errorf("%s %s not found", args[0], args[1])
				}
				return printJSON(cmd.OutOrStdout(), e.Record)
			})
		},
	}
}

func queryCmd(configPath *string) *cobra.Command {
	var (
		start, length int
		filters       []string
		count         bool
	)
	cmd := &cobra.Command{
		Use:   "query <entity-type>",
		Short: "List or count external entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := parseFilterFlags(filters)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				c, err := a.registry.Client(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if count {
					n, err := c.Count(cmd.Context(), fs)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), n)
					return nil
				}
				recs, err := c.Query(cmd.Context(), fs, nil, start, length)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "Offset of the first item")
	cmd.Flags().IntVar(&length, "length", 0, "Page length (REST clients only)")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as field=value or field<op>value, e.g. id>100")
	cmd.Flags().BoolVar(&count, "count", false, "Print the number of matching items")
	return cmd
}

func initConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Generate the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(*configPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", *configPath)
			return nil
		},
	}
}

var filterOps = []string{">=", "<=", "!=", "<>", ">", "<", "="}

// parseFilterFlags reads "field<op>value" flags. The first operator found wins.
func parseFilterFlags(raw []string) ([]extentity.Filter, error) {
	var out []extentity.Filter
	for _, s := range raw {
		pos, op := -1, ""
		for _, candidate := range filterOps {
			if i := strings.Index(s, candidate); i > 0 && (pos < 0 || i < pos) {
				pos, op = i, candidate
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("invalid filter %q", s)
		}
		out = append(out, extentity.Filter{
			Field:    strings.TrimSpace(s[:pos]),
			Operator: op,
			Value:    strings.TrimSpace(s[pos+len(op):]),
		})
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
