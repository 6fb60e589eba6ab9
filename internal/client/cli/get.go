package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/infirmary/internal/client/data"
	"github.com/iudanet/infirmary/internal/client/storage"
)

func (c *Cli) runGet(ctx context.Context, typeArg, id string) error {
	entityType, err := parseType(typeArg)
	if err != nil {
		return err
	}

	entity, err := c.data.Get(ctx, entityType, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("%s not found with ID: %s", entityType, id)
		}
		if errors.Is(err, data.ErrDeleted) {
			return fmt.Errorf("%s %s is deleted", entityType, id)
		}
		return fmt.Errorf("failed to get %s: %w", entityType, err)
	}

	view := recordView{
		Type:      entityType.String(),
		ID:        entity.ID,
		Version:   entity.Version,
		UpdatedAt: formatTime(entity.UpdatedAt),
		Fields:    fieldsOf(entity.Data),
	}

	op, err := c.data.Pending(ctx, entityType, id)
	switch {
	case err == nil:
		view.Pending = fmt.Sprintf("%s (%s, retries %d)", op.Kind, op.Status, op.RetryCount)
		if c.resolver.Has(op.TempID) {
			view.Pending += " " + red("CONFLICT")
		}
	case !errors.Is(err, storage.ErrOperationNotFound):
		return fmt.Errorf("failed to check pending operation: %w", err)
	}

	return recordTemplate.Execute(c.io, view)
}
