package repository

import (
	"mfs_literacy_backend/internal/model"

	"gorm.io/gorm"
)

// LessonRepository 只读，课程内容由外围内容库维护
type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) FindByIDs(ids []uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	if len(ids) == 0 {
		return lessons, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&lessons).Error
	return lessons, err
}
