// Command perspectivedb-merge is a debug tool for running the reconciliation
// engine over a YAML-described two-perspective DAG fixture and printing the
// resulting merge, without standing up any real store or transport.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/perspectivedb/perspectivedb/pkg/dag/merge"
	"github.com/perspectivedb/perspectivedb/pkg/logging"
	"github.com/perspectivedb/perspectivedb/pkg/perspectivedb"
	"github.com/perspectivedb/perspectivedb/pkg/store"
)

var rootConfiguration struct {
	// fixture is the path to the YAML DAG fixture to load.
	fixture string
	// config is the path to an optional output-configuration file, decoded
	// independently of the fixture (see config.go).
	config string
}

var rootCommand = &cobra.Command{
	Use:          "perspectivedb-merge",
	Short:        "Run the reconciliation engine over a DAG fixture",
	Args:         cobra.NoArgs,
	RunE:         run,
	SilenceUsage: true,
}

func run(command *cobra.Command, arguments []string) error {
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if rootConfiguration.fixture == "" {
		return fmt.Errorf("no fixture specified (use --fixture)")
	}

	cfg, err := loadConfig(rootConfiguration.config)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	out := newPrinter(os.Stdout, cfg)

	fixture, err := merge.LoadFixture(rootConfiguration.fixture)
	if err != nil {
		return fmt.Errorf("unable to load fixture: %w", err)
	}

	treeX := store.NewMemoryStore("x", logging.RootLogger)
	treeY := store.NewMemoryStore("y", logging.RootLogger)
	for _, fixtureItem := range fixture.Items {
		if err := treeX.Put(ctx, fixtureItem.ToItem()); err != nil {
			return fmt.Errorf("unable to seed X's store: %w", err)
		}
		if err := treeY.Put(ctx, fixtureItem.ToItem()); err != nil {
			return fmt.Errorf("unable to seed Y's store: %w", err)
		}
	}

	itemX, err := treeX.GetByVersion(ctx, fixture.Merge.X)
	if err != nil || itemX == nil {
		return fmt.Errorf("unable to resolve X's merge input %q: %w", fixture.Merge.X, err)
	}
	itemY, err := treeY.GetByVersion(ctx, fixture.Merge.Y)
	if err != nil || itemY == nil {
		return fmt.Errorf("unable to resolve Y's merge input %q: %w", fixture.Merge.Y, err)
	}

	out.printInputs(fixture, itemX, itemY)

	mergedX, mergedY, err := merge.Merge(ctx, itemX, itemY, treeX, treeY, logging.RootLogger)
	if err != nil {
		out.printError(err)
		return err
	}
	out.printResult(mergedX, mergedY)
	return nil
}

func main() {
	rootCommand.Flags().SortFlags = false
	rootCommand.Flags().StringVar(&rootConfiguration.fixture, "fixture", "", "path to a YAML DAG fixture")
	rootCommand.Flags().StringVar(&rootConfiguration.config, "config", "", "path to an output configuration file")
	rootCommand.Version = perspectivedb.Version

	rootCommand.SetFlagErrorFunc(func(command *cobra.Command, err error) error {
		if pflag.ErrHelp == err {
			return err
		}
		return fmt.Errorf("%w\n\n%s", err, command.UsageString())
	})

	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
