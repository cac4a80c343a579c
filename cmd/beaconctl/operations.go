package main

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
)

// run adapts one beacon operation to a cobra RunE.
func run(a *app, op func(cmd *cobra.Command, m *beacons.Module, args []string) (beaconbus.Outcome, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		out, err := op(cmd, a.module(), args)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), out)
	}
}

func newOperationCmds(a *app) []*cobra.Command {
	var includePillar, includeOpts bool

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured beacons",
		Args:  cobra.NoArgs,
		RunE: run(a, func(cmd *cobra.Command, m *beacons.Module, _ []string) (beaconbus.Outcome, error) {
			return m.List(cmd.Context(), beacons.IncludePillar(includePillar), beacons.IncludeOpts(includeOpts)), nil
		}),
	}
	list.Flags().BoolVar(&includePillar, "include-pillar", true, "include beacons configured in pillar")
	list.Flags().BoolVar(&includeOpts, "include-opts", true, "include beacons configured in the minion config")

	withData := func(use, short string, op func(*beacons.Module) func(cmd *cobra.Command, name string, data any) beaconbus.Outcome) *cobra.Command {
		return &cobra.Command{
			Use:   use + " NAME DATA",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: run(a, func(cmd *cobra.Command, m *beacons.Module, args []string) (beaconbus.Outcome, error) {
				data, err := parseData(args[1])
				if err != nil {
					return beaconbus.Outcome{}, err
				}
				return op(m)(cmd, args[0], data), nil
			}),
		}
	}

	named := func(use, short string, op func(*beacons.Module) func(cmd *cobra.Command, name string) beaconbus.Outcome) *cobra.Command {
		return &cobra.Command{
			Use:   use + " NAME",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: run(a, func(cmd *cobra.Command, m *beacons.Module, args []string) (beaconbus.Outcome, error) {
				return op(m)(cmd, args[0]), nil
			}),
		}
	}

	bare := func(use, short string, op func(*beacons.Module) func(cmd *cobra.Command) beaconbus.Outcome) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: run(a, func(cmd *cobra.Command, m *beacons.Module, _ []string) (beaconbus.Outcome, error) {
				return op(m)(cmd), nil
			}),
		}
	}

	return []*cobra.Command{
		list,
		bare("list-available", "List beacon modules the minion can run", func(m *beacons.Module) func(*cobra.Command) beaconbus.Outcome {
			return func(cmd *cobra.Command) beaconbus.Outcome { return m.ListAvailable(cmd.Context()) }
		}),
		withData("validate", "Validate a beacon configuration", func(m *beacons.Module) func(*cobra.Command, string, any) beaconbus.Outcome {
			return func(cmd *cobra.Command, name string, data any) beaconbus.Outcome {
				return m.Validate(cmd.Context(), name, data)
			}
		}),
		withData("add", "Add a beacon", func(m *beacons.Module) func(*cobra.Command, string, any) beaconbus.Outcome {
			return func(cmd *cobra.Command, name string, data any) beaconbus.Outcome {
				return m.Add(cmd.Context(), name, data)
			}
		}),
		withData("modify", "Modify a configured beacon", func(m *beacons.Module) func(*cobra.Command, string, any) beaconbus.Outcome {
			return func(cmd *cobra.Command, name string, data any) beaconbus.Outcome {
				return m.Modify(cmd.Context(), name, data)
			}
		}),
		named("delete", "Delete a beacon", func(m *beacons.Module) func(*cobra.Command, string) beaconbus.Outcome {
			return func(cmd *cobra.Command, name string) beaconbus.Outcome { return m.Delete(cmd.Context(), name) }
		}),
		bare("save", "Save configured beacons to beacons.conf", func(m *beacons.Module) func(*cobra.Command) beaconbus.Outcome {
			return func(cmd *cobra.Command) beaconbus.Outcome { return m.Save(cmd.Context()) }
		}),
		bare("enable", "Enable beacon processing", func(m *beacons.Module) func(*cobra.Command) beaconbus.Outcome {
			return func(cmd *cobra.Command) beaconbus.Outcome { return m.Enable(cmd.Context()) }
		}),
		bare("disable", "Disable beacon processing", func(m *beacons.Module) func(*cobra.Command) beaconbus.Outcome {
			return func(cmd *cobra.Command) beaconbus.Outcome { return m.Disable(cmd.Context()) }
		}),
		named("enable-beacon", "Enable one beacon", func(m *beacons.Module) func(*cobra.Command, string) beaconbus.Outcome {
			return func(cmd *cobra.Command, name string) beaconbus.Outcome { return m.EnableBeacon(cmd.Context(), name) }
		}),
		named("disable-beacon", "Disable one beacon", func(m *beacons.Module) func(*cobra.Command, string) beaconbus.Outcome {
			return func(cmd *cobra.Command, name string) beaconbus.Outcome { return m.DisableBeacon(cmd.Context(), name) }
		}),
		bare("reset", "Reset the beacon configuration", func(m *beacons.Module) func(*cobra.Command) beaconbus.Outcome {
			return func(cmd *cobra.Command) beaconbus.Outcome { return m.Reset(cmd.Context()) }
		}),
	}
}
