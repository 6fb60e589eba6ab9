package sync

import (
	"time"

	"github.com/iudanet/infirmary/internal/models"
)

// PushStats счетчики фазы push для одного типа
type PushStats struct {
	Success   int `json:"success"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// PullStats счетчики фазы pull для одного типа
type PullStats struct {
	Updated int `json:"updated"` // записи, измененные в локальном хранилище
	Skipped int `json:"skipped"` // записи с локальной операцией в очереди
}

// SyncResult агрегированный результат цикла синхронизации
type SyncResult struct {
	StartedAt  time.Time                        `json:"started_at"`
	FinishedAt time.Time                        `json:"finished_at"`
	Push       map[models.EntityType]*PushStats `json:"push"`
	Pull       map[models.EntityType]*PullStats `json:"pull"`
	Errors     []string                         `json:"errors,omitempty"`
	Skipped    bool                             `json:"skipped"` // цикл не запускался, результат из кеша
}

func newResult(startedAt time.Time) *SyncResult {
	r := &SyncResult{
		StartedAt: startedAt,
		Push:      make(map[models.EntityType]*PushStats, len(models.EntityTypes)),
		Pull:      make(map[models.EntityType]*PullStats, len(models.EntityTypes)),
	}
	for _, t := range models.EntityTypes {
		r.Push[t] = &PushStats{}
		r.Pull[t] = &PullStats{}
	}
	return r
}

func (r *SyncResult) push(t models.EntityType) *PushStats {
	s, ok := r.Push[t]
	if !ok {
		s = &PushStats{}
		r.Push[t] = s
	}
	return s
}

func (r *SyncResult) pull(t models.EntityType) *PullStats {
	s, ok := r.Pull[t]
	if !ok {
		s = &PullStats{}
		r.Pull[t] = s
	}
	return s
}

func (r *SyncResult) pushOf(t models.EntityType) PushStats {
	if s, ok := r.Push[t]; ok {
		return *s
	}
	return PushStats{}
}

// PushPatients returns push stats for patients
func (r *SyncResult) PushPatients() PushStats {
	return r.pushOf(models.EntityPatient)
}

// PushConsultations returns push stats for consultations
func (r *SyncResult) PushConsultations() PushStats {
	return r.pushOf(models.EntityConsultation)
}

// PushVaccinations returns push stats for vaccinations
func (r *SyncResult) PushVaccinations() PushStats {
	return r.pushOf(models.EntityVaccination)
}

// PushTotal sums push stats over all types
func (r *SyncResult) PushTotal() PushStats {
	var total PushStats
	for _, s := range r.Push {
		total.Success += s.Success
		total.Conflicts += s.Conflicts
		total.Errors += s.Errors
	}
	return total
}

// PullTotal sums pull stats over all types
func (r *SyncResult) PullTotal() PullStats {
	var total PullStats
	for _, s := range r.Pull {
		total.Updated += s.Updated
		total.Skipped += s.Skipped
	}
	return total
}

// Clone создает глубокую копию результата
func (r *SyncResult) Clone() *SyncResult {
	c := &SyncResult{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Skipped:    r.Skipped,
		Push:       make(map[models.EntityType]*PushStats, len(r.Push)),
		Pull:       make(map[models.EntityType]*PullStats, len(r.Pull)),
	}
	for t, s := range r.Push {
		v := *s
		c.Push[t] = &v
	}
	for t, s := range r.Pull {
		v := *s
		c.Pull[t] = &v
	}
	if r.Errors != nil {
		c.Errors = append([]string(nil), r.Errors...)
	}
	return c
}
