package repository

import (
	"errors"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/util"

	"gorm.io/gorm"
)

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

// Create 一篇提交至多一条评估；重复写入视为内部一致性缺陷
func (r *EvaluationRepository) Create(tx *gorm.DB, e *model.Evaluation) error {
	var n int64
	if err := tx.Model(&model.Evaluation{}).
		Where("submission_id = ?", e.SubmissionID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return util.ErrAlreadyEvaluated
	}
	return tx.Create(e).Error
}

func (r *EvaluationRepository) FindByID(id uint) (*model.Evaluation, error) {
	var e model.Evaluation
	err := r.DB.First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEvaluationNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListRecentByLearner 最近的若干条评估，新的在前，供能力追踪窗口使用
func (r *EvaluationRepository) ListRecentByLearner(tx *gorm.DB, learnerID uint, limit int) ([]model.Evaluation, error) {
	var es []model.Evaluation
	err := tx.Where("learner_id = ?", learnerID).
		Order("created_at desc, id desc").Limit(limit).Find(&es).Error
	return es, err
}

// AppendAdminNote 管理员复核批注，评估其余字段保持不可变
func (r *EvaluationRepository) AppendAdminNote(id uint, note string) (*model.Evaluation, error) {
	e, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	if e.AdminNote != "" {
		e.AdminNote = e.AdminNote + "\n" + note
	} else {
		e.AdminNote = note
	}
	if err := r.DB.Model(e).Update("admin_note", e.AdminNote).Error; err != nil {
		return nil, err
	}
	return e, nil
}
