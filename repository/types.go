package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cepro/minigridsim/appraisal"
)

// StoredRun records one optimisation run.
type StoredRun struct {
	ID          uuid.UUID `gorm:"primaryKey"`
	StartedAt   time.Time
	DurationMS  int64
	Iterations  int
	Simulations int
}

// StoredAppraisal persists one per-iteration system appraisal. The headline
// criteria are lifted into columns for querying; the full appraisal is kept as
// a JSON payload.
type StoredAppraisal struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RunID     uuid.UUID `gorm:"index"`
	Iteration int
	Objective string

	PVSize             float64
	StorageSize        float64
	Tanks              int
	DieselCapacity     float64
	BlackoutFraction   float64
	LCUE               float64
	EmissionsIntensity float64
	CumulativeCost     float64

	Payload []byte // full SystemAppraisal as JSON
}

func newStoredAppraisal(runID uuid.UUID, iteration int, objective appraisal.Criterion, app appraisal.SystemAppraisal) (StoredAppraisal, error) {
	payload, err := json.Marshal(app)
	if err != nil {
		return StoredAppraisal{}, fmt.Errorf("marshal appraisal: %w", err)
	}
	return StoredAppraisal{
		RunID:              runID,
		Iteration:          iteration,
		Objective:          string(objective),
		PVSize:             app.System.InitialPVSize,
		StorageSize:        app.System.InitialStorageSize,
		Tanks:              app.System.Tanks,
		DieselCapacity:     app.System.DieselCapacity,
		BlackoutFraction:   app.Criteria[appraisal.CriterionBlackoutFraction],
		LCUE:               app.Criteria[appraisal.CriterionLCUE],
		EmissionsIntensity: app.Criteria[appraisal.CriterionEmissionsIntensity],
		CumulativeCost:     app.Criteria[appraisal.CriterionCumulativeCost],
		Payload:            payload,
	}, nil
}

// Appraisal decodes the stored JSON payload.
func (s StoredAppraisal) Appraisal() (appraisal.SystemAppraisal, error) {
	var app appraisal.SystemAppraisal
	if err := json.Unmarshal(s.Payload, &app); err != nil {
		return appraisal.SystemAppraisal{}, fmt.Errorf("unmarshal appraisal payload: %w", err)
	}
	return app, nil
}
