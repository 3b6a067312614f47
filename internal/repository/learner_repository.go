package repository

import (
	"mfs_literacy_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type LearnerRepository struct {
	DB *gorm.DB
}

func NewLearnerRepository(db *gorm.DB) *LearnerRepository {
	return &LearnerRepository{DB: db}
}

func (r *LearnerRepository) FindByID(id uint) (*model.Learner, error) {
	var l model.Learner
	err := r.DB.First(&l, id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// FindByIDForUpdate 事务内行锁读取，提交管道落库前复核序号用
func (r *LearnerRepository) FindByIDForUpdate(tx *gorm.DB, id uint) (*model.Learner, error) {
	var l model.Learner
	err := lockForUpdate(tx).First(&l, id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LearnerRepository) Save(tx *gorm.DB, l *model.Learner) error {
	return tx.Save(l).Error
}

func (r *LearnerRepository) UpdateLastSeen(id uint) error {
	return r.DB.Model(&model.Learner{}).Where("id = ?", id).
		Update("last_active", time.Now()).Error
}
