package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/infirmary/internal/models"
)

func (c *Cli) runAdd(ctx context.Context, typeArg string, input PayloadInput) error {
	entityType, err := parseType(typeArg)
	if err != nil {
		return err
	}

	if input.empty() {
		// Интерактивный ввод JSON, если поля не переданы флагами
		line, err := c.io.ReadInput(fmt.Sprintf("%s JSON: ", entityType))
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		input.Data = line
	}

	payload, err := input.build()
	if err != nil {
		return err
	}

	entity, err := c.data.Create(ctx, entityType, payload)
	if err != nil {
		return describeWriteError(entityType, err)
	}

	c.io.Printf("%s %s saved locally with ID: %s\n", green("✓"), entityType, entity.ID)
	c.io.Println("It will be sent to the server on the next sync.")
	return nil
}

func (c *Cli) runUpdate(ctx context.Context, typeArg, id string, input PayloadInput) error {
	entityType, err := parseType(typeArg)
	if err != nil {
		return err
	}
	if input.empty() {
		return fmt.Errorf("nothing to update, pass --set, --data or --file")
	}

	patch, err := input.build()
	if err != nil {
		return err
	}

	if _, err := c.data.Update(ctx, entityType, id, patch); err != nil {
		return describeWriteError(entityType, err)
	}

	c.io.Printf("%s %s %s updated locally\n", green("✓"), entityType, id)
	return nil
}

func describeWriteError(entityType models.EntityType, err error) error {
	if models.IsValidation(err) {
		return fmt.Errorf("invalid %s: %w", entityType, err)
	}
	return fmt.Errorf("failed to save %s: %w", entityType, err)
}
