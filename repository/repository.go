// Package repository stores optimisation results to the local file system
// (sqlite) so that runs can be inspected and compared after the process
// exits.
package repository

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/cepro/minigridsim/appraisal"
	"github.com/cepro/minigridsim/optimisation"
)

type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&StoredRun{}, &StoredAppraisal{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

// AddResult persists a full optimisation run: the run record plus every
// per-iteration optimum for every objective.
func (r *Repository) AddResult(result optimisation.Result) error {
	run := StoredRun{
		ID:          result.ID,
		StartedAt:   time.Now().Add(-result.Duration),
		DurationMS:  result.Duration.Milliseconds(),
		Iterations:  len(result.Iterations),
		Simulations: result.Simulations,
	}
	if err := r.db.Create(&run).Error; err != nil {
		return fmt.Errorf("store run: %w", err)
	}

	for i, iteration := range result.Iterations {
		for objective, app := range iteration.Optima {
			stored, err := newStoredAppraisal(result.ID, i, objective, app)
			if err != nil {
				return err
			}
			if err := r.db.Create(&stored).Error; err != nil {
				return fmt.Errorf("store appraisal: %w", err)
			}
		}
	}
	return nil
}

// GetRun returns the stored run record.
func (r *Repository) GetRun(id interface{}) (StoredRun, error) {
	var run StoredRun
	result := r.db.First(&run, "id = ?", id)
	return run, result.Error
}

// GetAppraisals returns the stored appraisals of a run, ordered by iteration.
func (r *Repository) GetAppraisals(runID interface{}) ([]StoredAppraisal, error) {
	var appraisals []StoredAppraisal
	result := r.db.Where("run_id = ?", runID).Order("iteration asc").Find(&appraisals)
	if result.Error != nil {
		return nil, result.Error
	}
	return appraisals, nil
}

// AppraisalChain decodes the per-iteration appraisals of a run for one
// objective, in iteration order.
func (r *Repository) AppraisalChain(runID interface{}, objective appraisal.Criterion) ([]appraisal.SystemAppraisal, error) {
	stored, err := r.GetAppraisals(runID)
	if err != nil {
		return nil, err
	}
	var chain []appraisal.SystemAppraisal
	for _, s := range stored {
		if s.Objective != string(objective) {
			continue
		}
		app, err := s.Appraisal()
		if err != nil {
			return nil, err
		}
		chain = append(chain, app)
	}
	return chain, nil
}
