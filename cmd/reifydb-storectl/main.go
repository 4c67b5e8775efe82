// Command reifydb-storectl is a small operator CLI over the storage core's
// facade: inspect tier byte-counts, run a garbage-collection pass, and tail
// the CDC log. It follows cmd/hack's "one binary, subcommand per debugging
// task" shape, trading flag.* globals for urfave/cli subcommands — the
// teacher's own choice of CLI framework for its operator tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/reifydb/reifydb/config"
	"github.com/reifydb/reifydb/logging"
	"github.com/reifydb/reifydb/store"
)

func openFacade(c *cli.Context) (*store.Facade, error) {
	cfg := config.DefaultBackend()
	if path := c.GlobalString("path"); path != "" {
		cfg.HotTier = config.TierFile
		cfg.HotTierPath = path
	}
	return store.Open(cfg, config.DefaultTransactionManager())
}

func main() {
	app := cli.NewApp()
	app.Name = "reifydb-storectl"
	app.Usage = "inspect and maintain a reifydb storage-core instance"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "path", Usage: "hot-tier file path (defaults to an in-memory backend)"},
		cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug|info|warn|error"},
	}
	app.Before = func(c *cli.Context) error {
		logging.Init(logging.Config{Level: logging.Level(c.GlobalString("log-level"))})
		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:  "inspect",
			Usage: "print per-tier byte counts",
			Action: func(c *cli.Context) error {
				f, err := openFacade(c)
				if err != nil {
					return err
				}
				defer f.Close()
				stats := f.TierStats()
				fmt.Printf("hot=%d warm=%d cold=%d\n", stats.HotBytes, stats.WarmBytes, stats.ColdBytes)
				return nil
			},
		},
		{
			Name:  "gc",
			Usage: "run a garbage-collection pass and print its stats",
			Action: func(c *cli.Context) error {
				f, err := openFacade(c)
				if err != nil {
					return err
				}
				defer f.Close()
				stats, err := f.GarbageCollect(context.Background())
				if err != nil {
					return err
				}
				fmt.Printf("keys_processed=%d versions_removed=%d cdc_purged=%d\n", stats.KeysProcessed, stats.VersionsRemoved, stats.CDCPurged)
				return nil
			},
		},
		{
			Name:      "cdc-tail",
			Usage:     "scan the CDC log forward from a version",
			ArgsUsage: "[from-version]",
			Action: func(c *cli.Context) error {
				f, err := openFacade(c)
				if err != nil {
					return err
				}
				defer f.Close()

				var from uint64
				if c.NArg() > 0 {
					if _, err := fmt.Sscanf(c.Args().Get(0), "%d", &from); err != nil {
						return cli.NewExitError(fmt.Sprintf("invalid from-version: %v", err), 1)
					}
				}

				scan := f.CdcScan(from)
				ctx := context.Background()
				for {
					records, err := scan.Next(ctx, 256)
					if err != nil {
						return err
					}
					if len(records) == 0 {
						return nil
					}
					for _, rec := range records {
						fmt.Printf("version=%d deltas=%d\n", rec.CommitVersion, len(rec.Deltas))
					}
				}
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
