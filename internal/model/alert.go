package model

import "time"

type AlertType string

const (
	AlertLowComprehension AlertType = "low_comprehension"
	AlertNeedsSupport     AlertType = "needs_support"
	AlertEvaluationFailed AlertType = "evaluation_failed"
)

type AlertPriority string

const (
	AlertPriorityLow    AlertPriority = "low"
	AlertPriorityNormal AlertPriority = "normal"
	AlertPriorityHigh   AlertPriority = "high"
	AlertPriorityUrgent AlertPriority = "urgent"
)

var priorityOrder = []AlertPriority{
	AlertPriorityLow, AlertPriorityNormal, AlertPriorityHigh, AlertPriorityUrgent,
}

func (p AlertPriority) Rank() int {
	for i, pr := range priorityOrder {
		if pr == p {
			return i
		}
	}
	return -1
}

func (p AlertPriority) IsValid() bool {
	return p.Rank() >= 0
}

type AlertStatus string

const (
	AlertOpen     AlertStatus = "open"
	AlertResolved AlertStatus = "resolved"
)

// Alert 管理员告警。状态机：open → open(优先级抬升) → resolved，resolved 为终态
// 同一 (learner, type) 任一时刻至多一条 open 记录
// swagger:model Alert
type Alert struct {
	BaseModel
	// Reference 对外引用标识，管理员跨系统引用告警用，抬升与解除都不改变
	Reference string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"reference"`
	Type      AlertType `gorm:"type:varchar(30);not null;index:idx_learner_type,priority:2" json:"type"`
	LearnerID uint      `gorm:"not null;index:idx_learner_type,priority:1" json:"learnerId"`
	Learner   *Learner  `gorm:"foreignKey:LearnerID" json:"learner,omitempty"`
	// SubmissionID 触发提交的弱引用，告警可以比提交存活得更久
	SubmissionID *uint         `gorm:"index" json:"submissionId"`
	Priority     AlertPriority `gorm:"type:varchar(10);not null" json:"priority"`
	// PriorityRank 冗余的数值优先级，供跨方言排序
	PriorityRank int         `gorm:"not null" json:"-"`
	Message      string      `gorm:"type:text" json:"message"`
	Status       AlertStatus `gorm:"type:varchar(10);not null;default:'open';index" json:"status"`
	// TriggerCount 同类条件累计触发次数（含首次）
	TriggerCount int        `gorm:"default:1" json:"triggerCount"`
	ResolvedBy   *uint      `json:"resolvedBy"`
	ResolveNotes string     `gorm:"type:text" json:"resolveNotes"`
	ResolvedAt   *time.Time `json:"resolvedAt"`
}

func (Alert) TableName() string {
	return "alerts"
}
