package service

import (
	"fmt"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/internal/util"
	"mfs_literacy_backend/pkg/logger"
	"mfs_literacy_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AlertMutation 单次升级动作的结果，Created 区分新开与抬升
type AlertMutation struct {
	Alert   *model.Alert
	Created bool
}

// AlertService 告警升级引擎
// 只负责开/抬升与解除，通知下游由管道在事务提交后驱动
type AlertService struct {
	DB        *gorm.DB
	AlertRepo *repository.AlertRepository
}

func NewAlertService(db *gorm.DB, alertRepo *repository.AlertRepository) *AlertService {
	return &AlertService{DB: db, AlertRepo: alertRepo}
}

// triggerFor 触发条件到告警类型与默认优先级的映射
// 升级与否由决策携带的 Escalate 信号决定，理由只决定告警类型
func triggerFor(d model.AdjustmentDecision, evaluationFailed bool) (model.AlertType, model.AlertPriority, bool) {
	if !d.Escalate {
		return "", "", false
	}
	if evaluationFailed {
		return model.AlertEvaluationFailed, model.AlertPriorityHigh, true
	}
	switch d.Reason {
	case model.ReasonRepeatedRegression:
		return model.AlertNeedsSupport, model.AlertPriorityUrgent, true
	case model.ReasonSingleLowScore:
		return model.AlertLowComprehension, model.AlertPriorityNormal, true
	}
	return "", "", false
}

// EscalateInTx 在管道事务内执行：至多一条告警变更
// 去重的查找与写入共用同一事务行锁，同学习者同类型并发触发收敛为一条记录
func (s *AlertService) EscalateInTx(tx *gorm.DB, learner *model.Learner, submissionID *uint, eval *model.Evaluation, d model.AdjustmentDecision, evaluationFailed bool) (*AlertMutation, error) {
	alertType, priority, triggered := triggerFor(d, evaluationFailed)
	if !triggered {
		return nil, nil
	}

	message := buildAlertMessage(learner, alertType, eval)

	existing, err := s.AlertRepo.FindOpenForUpdate(tx, learner.ID, alertType)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		alert := &model.Alert{
			Reference:    model.GenerateUUID(),
			Type:         alertType,
			LearnerID:    learner.ID,
			SubmissionID: submissionID,
			Priority:     priority,
			PriorityRank: priority.Rank(),
			Message:      message,
			Status:       model.AlertOpen,
			TriggerCount: 1,
		}
		if err := s.AlertRepo.Create(tx, alert); err != nil {
			return nil, err
		}
		return &AlertMutation{Alert: alert, Created: true}, nil
	}

	// 抬升：更新详情，优先级只升不降
	existing.Message = message
	existing.SubmissionID = submissionID
	existing.TriggerCount++
	if priority.Rank() > existing.Priority.Rank() {
		existing.Priority = priority
		existing.PriorityRank = priority.Rank()
	}
	if err := s.AlertRepo.Save(tx, existing); err != nil {
		return nil, err
	}
	return &AlertMutation{Alert: existing, Created: false}, nil
}

func buildAlertMessage(learner *model.Learner, alertType model.AlertType, eval *model.Evaluation) string {
	switch alertType {
	case model.AlertEvaluationFailed:
		return fmt.Sprintf("%s 的作文未能完成自动评分，需要人工跟进", learner.Name)
	case model.AlertNeedsSupport:
		return fmt.Sprintf("%s 连续退步（最近得分 %.0f），已降低难度，建议辅导介入", learner.Name, eval.Score)
	default:
		return fmt.Sprintf("%s 最近一篇作文得分偏低（%.0f），请关注", learner.Name, eval.Score)
	}
}

// Resolve 管理员显式解除告警，幂等：重复解除返回已解除状态，不报错
func (s *AlertService) Resolve(alertID uint, resolverID uint, notes string) (*model.Alert, error) {
	var resolved *model.Alert
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		alert, err := s.AlertRepo.FindByIDForUpdate(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status == model.AlertResolved {
			resolved = alert
			return nil
		}
		now := time.Now()
		alert.Status = model.AlertResolved
		alert.ResolvedBy = &resolverID
		alert.ResolveNotes = notes
		alert.ResolvedAt = &now
		if err := s.AlertRepo.Save(tx, alert); err != nil {
			return err
		}
		resolved = alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// ListOpen 开放告警，优先级降序、创建时间升序；过滤参数可为空
func (s *AlertService) ListOpen(alertType model.AlertType, priority model.AlertPriority) ([]model.Alert, error) {
	if alertType != "" {
		switch alertType {
		case model.AlertLowComprehension, model.AlertNeedsSupport, model.AlertEvaluationFailed:
		default:
			return nil, fmt.Errorf("%w: unknown alert type %q", util.ErrInvalidFilter, alertType)
		}
	}
	if priority != "" && !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", util.ErrInvalidFilter, priority)
	}
	return s.AlertRepo.ListOpen(alertType, priority)
}

// RefreshOpenGauge 刷新开放告警数指标，后台周期任务调用
func (s *AlertService) RefreshOpenGauge() {
	counts, err := s.AlertRepo.CountOpenByType()
	if err != nil {
		logger.Log.Warn("failed to count open alerts", zap.Error(err))
		return
	}
	for _, t := range []model.AlertType{model.AlertLowComprehension, model.AlertNeedsSupport, model.AlertEvaluationFailed} {
		monitoring.OpenAlerts.WithLabelValues(string(t)).Set(float64(counts[t]))
	}
}
