package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kgtorrent/internal/config"
	"kgtorrent/internal/probe"
)

// skipValidation marks commands that run without a valid configuration.
const skipValidation = "kgtorrent/skip-validation"

// NewRootCommand builds the kgtorrent command tree. Every configuration
// option is a persistent flag shared by all subcommands.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{cfg: config.Default(), stdin: stdin, stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "kgtorrent",
		Short: "Load MetaKaggle into a relational database and download its notebooks.",
		Long: `kgtorrent builds a companion database of the MetaKaggle dataset and an
archive of the Jupyter notebooks it describes.

Tables are read from the dataset CSV files (or from preprocessed cache
artifacts), parsed, filtered for referential integrity and bulk loaded in
dependency order. Loading resumes where a previous run stopped: tables that
already hold rows are skipped.

Options can be given as flags, as KGTORRENT_* environment variables or in a
TOML, JSON or YAML file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.start(cmd)
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	config.BindFlags(rc.PersistentFlags(), &a.cfg)

	rc.AddCommand(newInitCommand(a))
	rc.AddCommand(newRefreshCommand(a))
	rc.AddCommand(newPopulateCommand(a))
	rc.AddCommand(newDownloadCommand(a))
	rc.AddCommand(newValidateCommand(a))
	rc.AddCommand(newOrderCommand(a))
	rc.AddCommand(newProbeCommand(a))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// start resolves the configuration of cmd and tags the run.
func (a *app) start(cmd *cobra.Command) error {
	if err := config.Apply(viper.New(), cmd.Flags()); err != nil {
		return err
	}
	if err := a.cfg.ResolveKaggleCredentials(); err != nil {
		return err
	}

	a.runID = uuid.NewString()
	log.SetPrefix("[" + a.runID[:8] + "] ")
	if a.cfg.Job == "" {
		a.cfg.Job = a.runID
	}
	if a.cfg.Verbose {
		log.Printf("kgtorrent: run_id=%s command=%s", a.runID, cmd.Name())
	}

	if cmd.Annotations[skipValidation] == "true" {
		return nil
	}
	issues := config.Validate(a.cfg)
	a.printIssues(issues)
	if config.HasErrors(issues) {
		return fmt.Errorf("invalid configuration")
	}
	return nil
}

func (a *app) printIssues(issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}

func newInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and populate the database, then download notebooks.",
		Long: `init creates every MetaKaggle table that is missing, populates them and
downloads the selected notebooks. The notebook directory must be empty
unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if err := ensureEmptyDir(a.cfg.Notebooks); err != nil {
					return err
				}
			}
			return a.withRepository(cmd.Context(), func(r *runner) error {
				if err := r.populate(cmd.Context()); err != nil {
					return err
				}
				return r.download(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Allow a non-empty notebook directory.")
	return cmd
}

func newRefreshCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Drop every MetaKaggle table, then repopulate and download.",
		Long: `refresh drops the MetaKaggle tables from the destination database
(children first), then behaves like init. Cache artifacts are kept and
reused; notebooks already on disk are not downloaded again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(a.stdin, a.stdout, fmt.Sprintf("Drop every MetaKaggle table in %s database %q?", a.cfg.Storage.Kind, a.databaseLabel()))
				if err != nil {
					return err
				}
				if !ok {
					return errAborted
				}
			}
			return a.withRepository(cmd.Context(), func(r *runner) error {
				if err := r.drop(cmd.Context()); err != nil {
					return err
				}
				if err := r.populate(cmd.Context()); err != nil {
					return err
				}
				return r.download(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation.")
	return cmd
}

func newPopulateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Create missing tables and load the dataset, without downloading.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd.Context(), func(r *runner) error {
				return r.populate(cmd.Context())
			})
		},
	}
}

func newDownloadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download notebooks for kernels already in the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd.Context(), func(r *runner) error {
				return r.download(cmd.Context())
			})
		},
	}
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration and exit.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := config.Validate(a.cfg)
			a.printIssues(issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("invalid configuration")
			}
			fmt.Fprintln(a.stdout, "configuration is valid")
			return nil
		},
	}
}

func newOrderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "order",
		Short:       "Print the order in which tables are loaded.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.catalog().Order()
			if err != nil {
				return err
			}
			for i, name := range order {
				fmt.Fprintf(a.stdout, "%2d  %s\n", i+1, name)
			}
			return nil
		},
	}
}

func newProbeCommand(a *app) *cobra.Command {
	var maxBytes int
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Sample the dataset CSV files and report problems before loading.",
		Long: `probe reads the head of every dataset CSV file and checks it against the
catalog: key, date and reference columns must be present and every date
column must parse with one layout. The detected layouts are printed in a
form suitable for --date-layouts. Nothing is written anywhere.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Dataset == "" {
				return errors.New("--dataset is required")
			}
			tables, err := probe.Dataset(cmd.Context(), a.cfg.Dataset, a.catalog(), probe.Options{MaxBytes: maxBytes, Layouts: a.cfg.DateLayouts})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tCOLUMN\tKIND\tLAYOUT\tMATCHED")
			problems := 0
			for _, t := range tables {
				for _, c := range t.Columns {
					kind, layout, matched := c.Kind.String(), "", ""
					if c.Date {
						kind, layout, matched = "date", c.Layout, fmt.Sprintf("%d/%d", c.Matched, c.Samples)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Name, c.Name, kind, layout, matched)
				}
				problems += len(t.Problems)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, t := range tables {
				for _, p := range t.Problems {
					fmt.Fprintf(a.stdout, "problem: %s: %s\n", t.Name, p)
				}
			}
			if l := probe.SuggestLayouts(tables); len(l) > 0 {
				fmt.Fprintf(a.stdout, "date layouts: --date-layouts=%q\n", strings.Join(l, ","))
			}
			if problems > 0 {
				return fmt.Errorf("%d problems found", problems)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxBytes, "bytes", probe.DefaultMaxBytes, "Bytes sampled from the head of each file.")
	return cmd
}
