// Package cli implements the ledgerctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/regulatory"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/retail-ledger/jobs"
)

// Seeder installs the base chart of accounts.
type Seeder interface {
	SeedBaseChart(ctx context.Context) (int, error)
}

// TrialBalancer builds trial balances.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, filter reports.Filter) (reports.TrialBalance, error)
}

// Exporter builds regulatory reports.
type Exporter interface {
	Export(ctx context.Context, report regulatory.Report, period string, branchID *int64) (any, error)
}

// JobQueue enqueues and inspects background jobs.
type JobQueue interface {
	TriggerIntegrity(ctx context.Context, payload jobs.LedgerIntegrityPayload) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// Backend is what a command needs from the running system.
type Backend struct {
	Accounts   Seeder
	Reports    TrialBalancer
	Regulatory Exporter
	Jobs       JobQueue
	Close      func() error
}

// Connector opens a Backend from an env file.
type Connector func(ctx context.Context, envFile string) (*Backend, error)

const dateLayout = "2006-01-02"

type rootState struct {
	connect Connector
	envFile string
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	state := &rootState{connect: connect}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the retail ledger",
		Long:          "Seed the chart of accounts, print reports and trigger background checks against the retail ledger database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&state.envFile, "env-file", ".env", "Env file loaded before the environment")

	root.AddCommand(
		state.seedCommand(),
		state.trialBalanceCommand(),
		state.reportCommand(),
		state.jobsCommand(),
	)
	return root
}

func (s *rootState) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := s.connect(ctx, s.envFile)
	if err != nil {
		return err
	}
	defer func() {
		if backend.Close != nil {
			_ = backend.Close()
		}
	}()
	return fn(ctx, backend)
}

func (s *rootState) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the base chart of accounts on an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				n, err := b.Accounts.SeedBaseChart(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts\n", n)
				return nil
			})
		},
	}
}

func (s *rootState) trialBalanceCommand() *cobra.Command {
	var from, to string
	var branch int64
	var level int
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance of a date range as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := reports.Filter{BranchID: optionalID(branch)}
			if from != "" {
				d, err := time.Parse(dateLayout, from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				filter.DateFrom = &d
			}
			if to != "" {
				d, err := time.Parse(dateLayout, to)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				filter.DateTo = &d
			}
			if level > 0 {
				filter.Level = &level
			}
			return s.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				tb, err := b.Reports.TrialBalance(ctx, filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), tb)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD")
	cmd.Flags().Int64Var(&branch, "branch", 0, "Branch id, all branches when 0")
	cmd.Flags().IntVar(&level, "level", 0, "Roll up to this account level")
	return cmd
}

func (s *rootState) reportCommand() *cobra.Command {
	var period, out string
	var branch int64
	cmd := &cobra.Command{
		Use:       "report <journal|ledger|sales|purchases|declaration>",
		Short:     "Build a regulatory report for a period",
		Long:      "Prints the report as JSON, or writes the pipe-delimited text file when --out is set. With a directory as --out the standard file name is used.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(regulatory.ReportJournal), string(regulatory.ReportLedger), string(regulatory.ReportSales), string(regulatory.ReportPurchases), string(regulatory.ReportDeclaration)},
		RunE: func(cmd *cobra.Command, args []string) error {
			report := regulatory.Report(args[0])
			return s.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				v, err := b.Regulatory.Export(ctx, report, period, optionalID(branch))
				if err != nil {
					return err
				}
				if out == "" {
					return writeJSON(cmd.OutOrStdout(), v)
				}
				return writeReportFile(cmd.OutOrStdout(), out, period, report, v)
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Period, YYYY-MM")
	cmd.Flags().Int64Var(&branch, "branch", 0, "Branch id, all branches when 0")
	cmd.Flags().StringVar(&out, "out", "", "Write the text export to this file or directory")
	return cmd
}

func (s *rootState) jobsCommand() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}

	var period string
	var branch int64
	integrity := &cobra.Command{
		Use:   "integrity",
		Short: "Enqueue a ledger integrity check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				info, err := b.Jobs.TriggerIntegrity(ctx, jobs.LedgerIntegrityPayload{Period: period, BranchID: optionalID(branch)})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
				return nil
			})
		},
	}
	integrity.Flags().StringVar(&period, "period", "", "Period, YYYY-MM; current period when empty")
	integrity.Flags().Int64Var(&branch, "branch", 0, "Branch id, all branches when 0")

	queue := &cobra.Command{
		Use:   "queue",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				stats, err := b.Jobs.InspectQueue(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	}

	jobsCmd.AddCommand(integrity, queue)
	return jobsCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReportFile(stdout io.Writer, out, period string, report regulatory.Report, v any) error {
	var body []byte
	var err error
	if report == regulatory.ReportDeclaration {
		body, err = json.MarshalIndent(v, "", "  ")
	} else {
		body, err = regulatory.RenderText(v)
	}
	if err != nil {
		return err
	}
	path := out
	if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
		name := regulatory.FileName(period, report)
		if report == regulatory.ReportDeclaration {
			name = name[:len(name)-len(filepath.Ext(name))] + ".json"
		}
		path = filepath.Join(out, name)
	} else if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func optionalID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}
