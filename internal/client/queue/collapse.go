package queue

import (
	"time"

	"github.com/iudanet/infirmary/internal/models"
)

// Action описывает, что хранилище должно сделать с очередью после Collapse
type Action int

const (
	// ActionAppend новая операция добавляется в конец очереди
	ActionAppend Action = iota
	// ActionReplace существующая операция перезаписывается результатом
	ActionReplace
	// ActionDrop существующая операция удаляется, в очереди ничего не остается
	ActionDrop
	// ActionKeep очередь не меняется
	ActionKeep
)

func (a Action) String() string {
	switch a {
	case ActionAppend:
		return "append"
	case ActionReplace:
		return "replace"
	case ActionDrop:
		return "drop"
	case ActionKeep:
		return "keep"
	}
	return "unknown"
}

// Collapse сворачивает новую операцию с операцией, уже стоящей в очереди для той же сущности.
// existing может быть nil. Результат сохраняет позицию (Seq, TempID) и BaseVersion
// самой ранней операции: именно на ней основано намерение пользователя.
//
//	queued \ new | create     | update        | delete
//	create       | error      | merge payload | drop create
//	update       | error      | merge payload | becomes delete
//	delete       | error      | error         | keep
func Collapse(existing, incoming *models.PendingOperation, now time.Time) (*models.PendingOperation, Action, error) {
	if existing == nil {
		return incoming, ActionAppend, nil
	}

	switch existing.Kind {
	case models.OpCreate:
		switch incoming.Kind {
		case models.OpCreate:
			return nil, ActionKeep, models.NewValidationError("kind", "%s is already queued for creation", existing.Key())
		case models.OpUpdate:
			return merged(existing, incoming, models.OpCreate, now)
		case models.OpDelete:
			return nil, ActionDrop, nil
		}

	case models.OpUpdate:
		switch incoming.Kind {
		case models.OpCreate:
			return nil, ActionKeep, models.NewValidationError("kind", "%s already exists", existing.Key())
		case models.OpUpdate:
			return merged(existing, incoming, models.OpUpdate, now)
		case models.OpDelete:
			out := existing.Clone()
			out.Kind = models.OpDelete
			out.Payload = nil
			resetAttempts(out, now)
			return out, ActionReplace, nil
		}

	case models.OpDelete:
		if incoming.Kind == models.OpDelete {
			return existing, ActionKeep, nil
		}
		return nil, ActionKeep, models.NewValidationError("kind", "%s is queued for deletion", existing.Key())
	}

	return nil, ActionKeep, models.NewValidationError("kind", "unknown operation kind %q", incoming.Kind)
}

func merged(existing, incoming *models.PendingOperation, kind models.OperationKind, now time.Time) (*models.PendingOperation, Action, error) {
	payload, err := Overlay(existing.Payload, incoming.Payload)
	if err != nil {
		return nil, ActionKeep, models.NewValidationError("payload", "%v", err)
	}

	out := existing.Clone()
	out.Kind = kind
	out.Payload = payload
	resetAttempts(out, now)
	return out, ActionReplace, nil
}

// resetAttempts: изменившаяся операция снова получает полный бюджет попыток
func resetAttempts(op *models.PendingOperation, now time.Time) {
	op.Status = models.StatusPending
	op.RetryCount = 0
	op.LastError = ""
	op.UpdatedAt = now
}
