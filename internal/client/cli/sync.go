package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/iudanet/infirmary/internal/client/sync"
	"github.com/iudanet/infirmary/internal/models"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")

	if err := c.goOnline(ctx); err != nil {
		return err
	}

	result, err := c.engine.FullSync(ctx)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}
	c.printResult(result)
	return nil
}

func (c *Cli) printResult(result *sync.SyncResult) {
	if result.Skipped {
		c.io.Println(yellow("Synchronization already running, showing the last result."))
	}

	push, pull := result.PushTotal(), result.PullTotal()
	if push == (sync.PushStats{}) && pull == (sync.PullStats{}) && len(result.Errors) == 0 {
		c.io.Println(green("✓ Everything is up to date"))
		return
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPUSHED\tCONFLICTS\tERRORS\tPULLED\tSKIPPED")
	for _, t := range models.EntityTypes {
		ps, pl := result.Push[t], result.Pull[t]
		if *ps == (sync.PushStats{}) && *pl == (sync.PullStats{}) {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", t, ps.Success, ps.Conflicts, ps.Errors, pl.Updated, pl.Skipped)
	}
	if err := w.Flush(); err != nil {
		c.logger.Warn("Failed to print sync result", "error", err)
	}

	for _, msg := range result.Errors {
		c.io.Printf("%s %s\n", red("✗"), msg)
	}
	if push.Conflicts > 0 {
		c.io.Printf("%s %d conflict(s), run 'infirmary conflicts list'\n", yellow("!"), push.Conflicts)
	}
}
