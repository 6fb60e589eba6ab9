package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func (c *Cli) runQueueList(ctx context.Context, failedOnly bool) error {
	list := c.queue.All
	if failedOnly {
		list = c.queue.Failed
	}
	ops, err := list(ctx)
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	c.io.Printf("=== Pending operations (%d) ===\n", len(ops))
	if len(ops) == 0 {
		c.io.Println("Queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEMP ID\tRECORD\tKIND\tSTATUS\tRETRIES\tLAST ERROR")
	for _, op := range ops {
		status := string(op.Status)
		if c.resolver.Has(op.TempID) {
			status = "conflict"
		}
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s\t%d/%d\t%s\n",
			op.TempID, op.EntityType, shortID(op.EntityID), op.Kind, status,
			op.RetryCount, c.queue.MaxRetries(), op.LastError)
	}
	return w.Flush()
}

func (c *Cli) runQueueRetry(ctx context.Context, tempID string) error {
	if err := c.queue.Retry(ctx, tempID); err != nil {
		return fmt.Errorf("failed to retry %s: %w", tempID, err)
	}
	c.io.Printf("%s %s will be sent on the next sync\n", green("✓"), tempID)
	return nil
}

// runQueueDiscard отменяет локальное изменение и перечитывает запись с сервера
func (c *Cli) runQueueDiscard(ctx context.Context, tempID string, yes bool) error {
	op, err := c.store.GetOperation(ctx, tempID)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", tempID, err)
	}

	if !yes {
		ok, err := c.io.Confirm(fmt.Sprintf("Discard local %s of %s?", op.Kind, op.Key()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			c.io.Println("Cancelled.")
			return nil
		}
	}

	if _, err := c.engine.Discard(ctx, tempID); err != nil {
		return fmt.Errorf("failed to discard %s: %w", tempID, err)
	}
	if err := c.resolver.Forget(ctx, tempID); err != nil {
		return err
	}
	c.io.Printf("%s Discarded %s\n", green("✓"), tempID)

	// без связи запись помечена устаревшей и будет перечитана следующей синхронизацией
	if err := c.goOnline(ctx); err != nil {
		c.io.Printf("%s Local copy of %s will be re-read from the server on the next sync: %v\n", yellow("!"), op.Key(), err)
		return nil
	}
	if err := c.engine.Refresh(ctx, op.EntityType, op.EntityID); err != nil {
		c.io.Printf("%s Failed to refresh %s: %v\n", yellow("!"), op.Key(), err)
		return nil
	}
	c.io.Printf("Refreshed %s from server\n", op.Key())
	return nil
}
