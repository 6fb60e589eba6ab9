package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runDelete(ctx context.Context, typeArg, id string, yes bool) error {
	entityType, err := parseType(typeArg)
	if err != nil {
		return err
	}

	if !yes {
		ok, err := c.io.Confirm(fmt.Sprintf("Delete %s %s?", entityType, id))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			c.io.Println("Cancelled.")
			return nil
		}
	}

	if err := c.data.Delete(ctx, entityType, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", entityType, err)
	}

	c.io.Printf("%s %s %s deleted locally\n", green("✓"), entityType, id)
	return nil
}
