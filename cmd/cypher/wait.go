package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bratushka/cypher/pkg/provider"
)

var (
	waitTimeout     time.Duration
	waitMaxInterval time.Duration
	waitAll         bool
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until the configured databases accept connections",
	Long: `Wait until a TCP connection can be opened to the selected database, or to
every configured database with --all. Useful before starting the shell in a
container next to the database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		names := []string{DatabaseName}
		if waitAll {
			names = cfg.Names()
		}
		addrs := make([]string, 0, len(names))
		for _, name := range names {
			db, err := cfg.Database(name)
			if err != nil {
				return err
			}
			addr, err := db.Address()
			if err != nil {
				return err
			}
			addrs = append(addrs, addr)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		start := time.Now()
		err = provider.WaitReachable(ctx, addrs, provider.WaitOptions{
			Timeout:     waitTimeout,
			MaxInterval: waitMaxInterval,
		})
		if err != nil {
			return fmt.Errorf("waiting for %v: %w", addrs, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reachable after %s: %v\n", time.Since(start).Round(time.Millisecond), addrs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(waitCmd)

	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", time.Minute, "Give up after this long (0 waits forever)")
	waitCmd.Flags().DurationVar(&waitMaxInterval, "max-interval", 5*time.Second, "Longest pause between two attempts")
	waitCmd.Flags().BoolVar(&waitAll, "all", false, "Wait for every configured database")
}
