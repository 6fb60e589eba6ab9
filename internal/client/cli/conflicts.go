package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/iudanet/infirmary/internal/models"
)

func (c *Cli) runConflictsList(ctx context.Context) error {
	snapshot := c.resolver.Snapshot()

	c.io.Printf("=== Conflicts (%d) ===\n", snapshot.ConflictCount)
	if snapshot.ConflictCount == 0 {
		c.io.Println("No unresolved conflicts.")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEMP ID\tRECORD\tKIND\tBASE\tSERVER\tDETECTED")
	for _, cf := range snapshot.Conflicts {
		server := fmt.Sprintf("v%d", cf.ServerVersion)
		switch {
		case cf.ServerUnknown:
			server = "unknown"
		case cf.ServerData == nil:
			server = "gone"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tv%d\t%s\t%s\n",
			cf.TempID, models.EntityKey(cf.EntityType, shortID(cf.EntityID)), cf.Kind,
			cf.BaseVersion, server, formatTime(cf.DetectedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Resolve with 'infirmary conflicts resolve <temp-id> --keep local|server'.")
	return nil
}

func (c *Cli) runConflictShow(ctx context.Context, tempID string) error {
	cf, ok := c.resolver.Get(tempID)
	if !ok {
		return fmt.Errorf("no conflict for %s", tempID)
	}

	c.io.Printf("=== Conflict %s ===\n", cf.TempID)
	c.io.Printf("Record:   %s\n", models.EntityKey(cf.EntityType, cf.EntityID))
	c.io.Printf("Change:   %s based on v%d\n", cf.Kind, cf.BaseVersion)
	if cf.Message != "" {
		c.io.Printf("Message:  %s\n", cf.Message)
	}

	c.io.Println()
	c.io.Println(cyan("Local:"))
	c.printFields(cf.LocalData)

	c.io.Println()
	switch {
	case cf.ServerUnknown:
		c.io.Println(cyan("Server:") + " version not reported, re-read on --keep server")
		return nil
	case cf.ServerData == nil:
		c.io.Println(cyan("Server:") + " record no longer exists")
		return nil
	}
	c.io.Println(cyan(fmt.Sprintf("Server (v%d):", cf.ServerVersion)))
	c.printFields(cf.ServerData)
	return nil
}

func (c *Cli) printFields(raw []byte) {
	fields := fieldsOf(raw)
	if len(fields) == 0 {
		c.io.Println("  (no fields)")
		return
	}
	for _, f := range fields {
		c.io.Printf("  %-16s %s\n", f.Name, f.Value)
	}
}

func (c *Cli) runConflictResolve(ctx context.Context, tempID, keep string) error {
	resolution, ok := models.ParseResolution(keep)
	if !ok {
		return fmt.Errorf("unknown resolution %q, expected local or server", keep)
	}
	if resolution == models.ResolutionLocal {
		if err := c.goOnline(ctx); err != nil {
			return err
		}
	}

	if err := c.resolver.ResolveConflict(ctx, tempID, resolution); err != nil {
		return err
	}
	c.io.Printf("%s Conflict %s resolved with %s version\n", green("✓"), tempID, resolution)
	return nil
}

func (c *Cli) runConflictResolveAll(ctx context.Context, keep string) error {
	resolution, ok := models.ParseResolution(keep)
	if !ok {
		return fmt.Errorf("unknown resolution %q, expected local or server", keep)
	}
	if resolution == models.ResolutionLocal {
		if err := c.goOnline(ctx); err != nil {
			return err
		}
	}

	outcomes := c.resolver.ResolveAllConflicts(ctx, resolution)
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			c.io.Printf("%s %s: %v\n", red("✗"), o.TempID, o.Err)
			continue
		}
		c.io.Printf("%s %s\n", green("✓"), o.TempID)
	}

	c.io.Printf("Resolved %d of %d conflict(s)\n", len(outcomes)-failed, len(outcomes))
	if failed > 0 {
		return fmt.Errorf("%d conflict(s) could not be resolved", failed)
	}
	return nil
}
