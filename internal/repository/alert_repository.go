package repository

import (
	"errors"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/util"

	"gorm.io/gorm"
)

type AlertRepository struct {
	DB *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{DB: db}
}

// FindOpenForUpdate 行锁查找 (learner, type) 的 open 告警
// 去重查找和后续写入必须在同一事务里，见告警引擎
func (r *AlertRepository) FindOpenForUpdate(tx *gorm.DB, learnerID uint, alertType model.AlertType) (*model.Alert, error) {
	var alerts []model.Alert
	err := lockForUpdate(tx).
		Where("learner_id = ? AND type = ? AND status = ?", learnerID, alertType, model.AlertOpen).
		Order("created_at asc").Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	switch len(alerts) {
	case 0:
		return nil, nil
	case 1:
		return &alerts[0], nil
	default:
		// 同类 open 告警出现多条说明原子写纪律被破坏
		return nil, util.ErrDuplicateOpenAlert
	}
}

func (r *AlertRepository) Create(tx *gorm.DB, a *model.Alert) error {
	return tx.Create(a).Error
}

func (r *AlertRepository) Save(tx *gorm.DB, a *model.Alert) error {
	return tx.Save(a).Error
}

func (r *AlertRepository) FindByID(id uint) (*model.Alert, error) {
	var a model.Alert
	err := r.DB.Preload("Learner").First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAlertNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AlertRepository) FindByIDForUpdate(tx *gorm.DB, id uint) (*model.Alert, error) {
	var a model.Alert
	err := lockForUpdate(tx).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAlertNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListOpen 开放告警列表，优先级降序、创建时间升序
func (r *AlertRepository) ListOpen(alertType model.AlertType, priority model.AlertPriority) ([]model.Alert, error) {
	var as []model.Alert
	query := r.DB.Preload("Learner").Where("status = ?", model.AlertOpen)
	if alertType != "" {
		query = query.Where("type = ?", alertType)
	}
	if priority != "" {
		query = query.Where("priority = ?", priority)
	}
	err := query.Order("priority_rank desc, created_at asc").Find(&as).Error
	return as, err
}

func (r *AlertRepository) CountOpenByType() (map[model.AlertType]int64, error) {
	type row struct {
		Type  model.AlertType
		Count int64
	}
	var rows []row
	err := r.DB.Model(&model.Alert{}).
		Select("type, count(*) as count").
		Where("status = ?", model.AlertOpen).
		Group("type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.AlertType]int64, len(rows))
	for _, rw := range rows {
		out[rw.Type] = rw.Count
	}
	return out, nil
}
