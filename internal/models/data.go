package models

// Patient представляет карточку пациента медпункта.
type Patient struct {
	ID         string `json:"id,omitempty"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	BirthDate  string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender     string `json:"gender,omitempty" validate:"omitempty,oneof=M F O"`
	DocumentID string `json:"document_id,omitempty" validate:"max=50"`
	Phone      string `json:"phone,omitempty" validate:"max=30"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	BloodType  string `json:"blood_type,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies  string `json:"allergies,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// VitalSigns жизненные показатели, снятые во время консультации
type VitalSigns struct {
	Temperature   float64 `json:"temperature,omitempty" validate:"omitempty,gte=30,lte=45"`
	BloodPressure string  `json:"blood_pressure,omitempty"`
	HeartRate     int     `json:"heart_rate,omitempty" validate:"omitempty,gte=20,lte=250"`
	Weight        float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
}

// Consultation представляет запись о консультации пациента.
type Consultation struct {
	ID         string     `json:"id,omitempty"`
	PatientID  string     `json:"patient_id" validate:"required"`
	Date       string     `json:"date" validate:"required,datetime=2006-01-02"`
	Reason     string     `json:"reason" validate:"required,max=500"`
	Diagnosis  string     `json:"diagnosis,omitempty"`
	Treatment  string     `json:"treatment,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	VitalSigns VitalSigns `json:"vital_signs"`
}

// Vaccination представляет факт вакцинации.
type Vaccination struct {
	ID           string `json:"id,omitempty"`
	PatientID    string `json:"patient_id" validate:"required"`
	VaccineName  string `json:"vaccine_name" validate:"required,max=200"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	LotNumber    string `json:"lot_number,omitempty"`
	NextDoseDate string `json:"next_dose_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DoseNumber   int    `json:"dose_number" validate:"gte=1"`
}

// Статусы записи на прием
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// Appointment представляет запись на прием.
type Appointment struct {
	ID          string `json:"id,omitempty"`
	PatientID   string `json:"patient_id" validate:"required"`
	ScheduledAt string `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04"`
	Status      string `json:"status" validate:"required,oneof=scheduled completed cancelled no_show"`
	Reason      string `json:"reason,omitempty"`
}

// Medication представляет позицию склада медикаментов.
type Medication struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name" validate:"required,max=200"`
	Unit      string `json:"unit,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Location  string `json:"location,omitempty"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	MinStock  int    `json:"min_stock" validate:"gte=0"`
}

// LowStock reports whether the stock fell to or below the configured minimum
func (m *Medication) LowStock() bool {
	return m.Quantity <= m.MinStock
}

// SanitaryRest представляет справку о санитарном отдыхе (освобождении).
type SanitaryRest struct {
	ID             string `json:"id,omitempty"`
	PatientID      string `json:"patient_id" validate:"required"`
	ConsultationID string `json:"consultation_id,omitempty"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Diagnosis      string `json:"diagnosis,omitempty"`
	Days           int    `json:"days" validate:"gte=1"`
}

// NewPayload returns an empty domain struct for the entity type,
// used to decode and validate raw payloads.
func NewPayload(entityType EntityType) (any, bool) {
	switch entityType {
	case EntityPatient:
		return &Patient{}, true
	case EntityConsultation:
		return &Consultation{}, true
	case EntityVaccination:
		return &Vaccination{}, true
	case EntityAppointment:
		return &Appointment{}, true
	case EntityMedication:
		return &Medication{}, true
	case EntitySanitaryRest:
		return &SanitaryRest{}, true
	}
	return nil, false
}
