package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/infirmary/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()

	session, err := c.auth.Restore(ctx)
	switch {
	case err == nil:
		c.io.Printf("Session:       %s (%s)\n", session.Username, session.ServerURL)
		if session.ExpiresAt != 0 {
			c.io.Printf("Expires:       %s\n", formatTime(time.Unix(session.ExpiresAt, 0)))
		}
	case errors.Is(err, auth.ErrNotAuthenticated):
		c.io.Printf("Session:       %s\n", yellow(err.Error()))
	default:
		return err
	}

	if c.monitor.Check(ctx, c.provider) {
		c.io.Printf("Server:        %s %s\n", c.cfg.ServerURL, green("online"))
	} else {
		c.io.Printf("Server:        %s %s\n", c.cfg.ServerURL, red("offline"))
	}

	meta, err := c.engine.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync metadata: %w", err)
	}
	failed, err := c.queue.Failed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list failed operations: %w", err)
	}

	c.io.Printf("Last sync:     %s\n", formatTime(meta.LastSyncDate))
	c.io.Printf("Pending ops:   %d\n", meta.PendingOperationsCount)
	c.io.Printf("Failed ops:    %d\n", len(failed))
	c.io.Printf("Conflicts:     %d\n", c.resolver.Count())
	if meta.LastError != "" {
		c.io.Printf("Last error:    %s\n", red(meta.LastError))
	}

	c.io.Println()
	switch {
	case c.resolver.Count() > 0:
		c.io.Println("Run 'infirmary conflicts list' to review conflicts.")
	case len(failed) > 0:
		c.io.Println("Run 'infirmary queue list' to review failed operations.")
	case meta.PendingOperationsCount > 0:
		c.io.Println("Run 'infirmary sync' to send local changes.")
	default:
		c.io.Println(green("✓ All data synchronized with server"))
	}
	return nil
}
