package data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

// Decode разбирает поля записи в доменную структуру, ID берется из записи
func Decode[T any](e *models.Entity) (*T, error) {
	raw, err := sjson.SetBytes(e.Data, "id", e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to set id of %s: %w", e.Key(), err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", e.Key(), err)
	}
	return &v, nil
}

// CreateFrom сериализует доменную структуру и создает запись
func CreateFrom(ctx context.Context, svc Service, entityType models.EntityType, v any) (*models.Entity, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", entityType, err)
	}
	return svc.Create(ctx, entityType, payload)
}

// GetAs returns a live record decoded into T
func GetAs[T any](ctx context.Context, svc Service, entityType models.EntityType, id string) (*T, error) {
	e, err := svc.Get(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	return Decode[T](e)
}

// ListAs returns live records of the type decoded into T
func ListAs[T any](ctx context.Context, svc Service, entityType models.EntityType, filter storage.ListFilter) ([]*T, error) {
	entities, err := svc.List(ctx, entityType, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(entities))
	for _, e := range entities {
		v, err := Decode[T](e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetPatient returns a patient card
func GetPatient(ctx context.Context, svc Service, id string) (*models.Patient, error) {
	return GetAs[models.Patient](ctx, svc, models.EntityPatient, id)
}

// ListPatients returns all live patient cards
func ListPatients(ctx context.Context, svc Service) ([]*models.Patient, error) {
	return ListAs[models.Patient](ctx, svc, models.EntityPatient, storage.ListFilter{})
}

// ForPatient returns records of the type referencing the patient
func ForPatient(ctx context.Context, svc Service, entityType models.EntityType, patientID string) ([]*models.Entity, error) {
	entities, err := svc.List(ctx, entityType, storage.ListFilter{})
	if err != nil {
		return nil, err
	}

	var out []*models.Entity
	for _, e := range entities {
		if gjson.GetBytes(e.Data, "patient_id").String() == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

// LowStock returns medications at or below their minimum stock
func LowStock(ctx context.Context, svc Service) ([]*models.Medication, error) {
	meds, err := ListAs[models.Medication](ctx, svc, models.EntityMedication, storage.ListFilter{})
	if err != nil {
		return nil, err
	}

	var low []*models.Medication
	for _, m := range meds {
		if m.LowStock() {
			low = append(low, m)
		}
	}
	return low, nil
}
