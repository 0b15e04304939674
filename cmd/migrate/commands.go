package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/pkg/version"
	"github.com/getpup/schemamigrate/planner"
)

func parseTarget(args []string) (schemamigrate.Identifier, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := schemamigrate.ParseIdentifier(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid target %q: %w", args[0], err)
	}
	return id, nil
}

func (a *app) newUpCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "up [target]",
		Short: "Apply pending migrations up to target (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args)
			if err != nil {
				return err
			}
			e, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}

			if dryRun {
				plan, err := e.Plan(cmd.Context(), schemamigrate.DirectionUp, target)
				if err != nil {
					return err
				}
				printPlan(a.stdout, plan)
				return nil
			}

			res, err := e.Up(cmd.Context(), target)
			if err != nil {
				return err
			}
			printResult(a.stdout, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the migrations that would run without applying them")
	return cmd
}

func (a *app) newDownCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "down <target>",
		Short: "Revert applied migrations newer than target (0 reverts everything)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args)
			if err != nil {
				return err
			}
			e, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}

			if dryRun {
				plan, err := e.Plan(cmd.Context(), schemamigrate.DirectionDown, target)
				if err != nil {
					return err
				}
				printPlan(a.stdout, plan)
				return nil
			}

			res, err := e.Down(cmd.Context(), target)
			if err != nil {
				return err
			}
			printResult(a.stdout, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the migrations that would be reverted without reverting them")
	return cmd
}

func (a *app) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}

			statuses, err := e.Status(cmd.Context())
			if err != nil {
				return err
			}
			intents, err := e.Intents(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATE\tAPPLIED AT\tNOTE")
			for _, s := range statuses {
				appliedAt := "-"
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
				}
				name := s.Name
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, name, s.State, appliedAt, statusNote(s))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, in := range intents {
				fmt.Fprintf(a.stdout, "interrupted: migration %s (%s) started %s; check the schema and run resolve\n",
					in.ID, in.Direction, in.StartedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func statusNote(s schemamigrate.MigrationStatus) string {
	switch {
	case s.OutOfOrder:
		return "out of order, up skips it"
	case s.Orphaned:
		return "no definition"
	default:
		return "-"
	}
}

func (a *app) newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every pending migration reverts cleanly, without writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.Verify(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "all pending migrations are reversible")
			return nil
		},
	}
}

func (a *app) newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> applied|unapplied",
		Short: "Force the ledger state of a migration after manual reconciliation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := schemamigrate.ParseIdentifier(args[0])
			if err != nil {
				return fmt.Errorf("invalid migration id %q: %w", args[0], err)
			}
			state := schemamigrate.MigrationState(args[1])

			e, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.Resolve(cmd.Context(), id, state); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "migration %s marked %s\n", id, state)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s\n", version.String())
			return nil
		},
	}
}

func printPlan(w io.Writer, plan planner.Plan) {
	if plan.Empty() {
		fmt.Fprintf(w, "nothing to do (last applied %s)\n", plan.LastApplied)
		return
	}
	fmt.Fprintf(w, "would migrate %s from %s to %s:\n", plan.Direction, plan.LastApplied, plan.Target)
	for _, def := range plan.Steps {
		fmt.Fprintf(w, "  %s %s\n", def.ID, def.Name)
	}
}

func printResult(w io.Writer, res schemamigrate.Result) {
	if len(res.Executed) == 0 {
		fmt.Fprintf(w, "nothing to do (last applied %s)\n", res.LastApplied)
		return
	}
	for _, id := range res.Executed {
		fmt.Fprintf(w, "%s %s\n", res.Direction, id)
	}
	fmt.Fprintf(w, "last applied: %s\n", res.LastApplied)
}
