package repository

import (
	"errors"
	"mfs_literacy_backend/internal/model"

	"gorm.io/gorm"
)

type AdjustmentRepository struct {
	DB *gorm.DB
}

func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	return &AdjustmentRepository{DB: db}
}

// Create 审计日志只增不改
func (r *AdjustmentRepository) Create(tx *gorm.DB, a *model.DifficultyAdjustment) error {
	return tx.Create(a).Error
}

// ListByLearner 按时间升序返回完整调整链
func (r *AdjustmentRepository) ListByLearner(learnerID uint) ([]model.DifficultyAdjustment, error) {
	var as []model.DifficultyAdjustment
	err := r.DB.Where("learner_id = ?", learnerID).
		Order("created_at asc, id asc").Find(&as).Error
	return as, err
}

// LastByLearner 链尾记录，没有历史时返回 nil
func (r *AdjustmentRepository) LastByLearner(tx *gorm.DB, learnerID uint) (*model.DifficultyAdjustment, error) {
	var a model.DifficultyAdjustment
	err := tx.Where("learner_id = ?", learnerID).
		Order("created_at desc, id desc").First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
