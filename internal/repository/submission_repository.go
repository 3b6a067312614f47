package repository

import (
	"mfs_literacy_backend/internal/model"

	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(tx *gorm.DB, s *model.EssaySubmission) error {
	return tx.Create(s).Error
}

func (r *SubmissionRepository) FindByID(id uint) (*model.EssaySubmission, error) {
	var s model.EssaySubmission
	err := r.DB.Preload("Evaluation").First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) ListByLearner(learnerID uint, page, limit int) ([]model.EssaySubmission, int64, error) {
	var ss []model.EssaySubmission
	var total int64
	query := r.DB.Model(&model.EssaySubmission{}).Where("learner_id = ?", learnerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Preload("Evaluation").
		Order("seq desc").Offset(offset).Limit(limit).Find(&ss).Error
	return ss, total, err
}

// CountByFingerprint 同一学习者重复提交检测，只记日志不拒绝
func (r *SubmissionRepository) CountByFingerprint(learnerID uint, fingerprint string) (int64, error) {
	var n int64
	err := r.DB.Model(&model.EssaySubmission{}).
		Where("learner_id = ? AND fingerprint = ?", learnerID, fingerprint).
		Count(&n).Error
	return n, err
}
