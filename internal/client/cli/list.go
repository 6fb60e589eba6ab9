package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/iudanet/infirmary/internal/client/data"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

// ListOptions флаги команды list
type ListOptions struct {
	Patient        string // Patient только записи пациента (по patient_id)
	LowStock       bool   // LowStock только медикаменты ниже минимального остатка
	IncludeDeleted bool
	Limit          int
}

func (c *Cli) runList(ctx context.Context, typeArg string, opts ListOptions) error {
	entityType, err := parseType(typeArg)
	if err != nil {
		return err
	}

	var entities []*models.Entity
	switch {
	case opts.LowStock:
		if entityType != models.EntityMedication {
			return fmt.Errorf("--low-stock applies to medication only")
		}
		return c.listLowStock(ctx)
	case opts.Patient != "":
		entities, err = data.ForPatient(ctx, c.data, entityType, opts.Patient)
	default:
		entities, err = c.data.List(ctx, entityType, storage.ListFilter{
			IncludeDeleted: opts.IncludeDeleted,
			Limit:          opts.Limit,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	c.io.Printf("=== %s (%d) ===\n", entityType, len(entities))
	if len(entities) == 0 {
		c.io.Println("No records found.")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tSTATE\tFIELDS")
	for _, e := range entities {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.ID, e.Version, c.recordState(ctx, e), summary(e.Data, 3))
	}
	return w.Flush()
}

// recordState состояние синхронизации записи для списков
func (c *Cli) recordState(ctx context.Context, e *models.Entity) string {
	op, err := c.data.Pending(ctx, e.Type, e.ID)
	if errors.Is(err, storage.ErrOperationNotFound) {
		if e.Deleted {
			return "deleted"
		}
		return "synced"
	}
	if err != nil {
		return "unknown"
	}
	switch {
	case c.resolver.Has(op.TempID):
		return "conflict"
	case op.IsFailed():
		return "failed"
	}
	return "pending " + string(op.Kind)
}

func (c *Cli) listLowStock(ctx context.Context) error {
	items, err := data.LowStock(ctx, c.data)
	if err != nil {
		return fmt.Errorf("failed to list medication: %w", err)
	}

	c.io.Printf("=== Low stock (%d) ===\n", len(items))
	if len(items) == 0 {
		c.io.Println("All medication is above minimum stock.")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQUANTITY\tMIN")
	for _, m := range items {
		fmt.Fprintf(w, "%s\t%s\t%d %s\t%d\n", m.ID, m.Name, m.Quantity, m.Unit, m.MinStock)
	}
	return w.Flush()
}
