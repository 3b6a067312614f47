package model

import "encoding/json"

// ComprehensionCategory 理解水平档位，由分数按固定分段推导，不可独立设置
type ComprehensionCategory string

const (
	CategoryNeedsSupport ComprehensionCategory = "needs_support"
	CategoryAdequate     ComprehensionCategory = "adequate"
	CategoryGood         ComprehensionCategory = "good"
	CategoryExcellent    ComprehensionCategory = "excellent"
)

var categoryOrder = []ComprehensionCategory{
	CategoryNeedsSupport, CategoryAdequate, CategoryGood, CategoryExcellent,
}

func (c ComprehensionCategory) Rank() int {
	for i, cat := range categoryOrder {
		if cat == c {
			return i
		}
	}
	return -1
}

// CategoryForScore 固定分段映射：[0,40) [40,65) [65,85) [85,100]
func CategoryForScore(score float64) ComprehensionCategory {
	switch {
	case score < 40:
		return CategoryNeedsSupport
	case score < 65:
		return CategoryAdequate
	case score < 85:
		return CategoryGood
	default:
		return CategoryExcellent
	}
}

// RecommendedAction 评估给出的建议动作
type RecommendedAction string

const (
	ActionAdvance      RecommendedAction = "advance"
	ActionHold         RecommendedAction = "hold"
	ActionNeedsSupport RecommendedAction = "needs_support"
)

// ActionForCategory 默认动作由档位推导，适配器只允许向下覆盖
func ActionForCategory(c ComprehensionCategory) RecommendedAction {
	switch c {
	case CategoryNeedsSupport:
		return ActionNeedsSupport
	case CategoryExcellent:
		return ActionAdvance
	default:
		return ActionHold
	}
}

// Evaluation 一次提交至多一条评估，创建后只允许追加管理员批注
// swagger:model Evaluation
type Evaluation struct {
	BaseModel
	SubmissionID  uint                  `gorm:"uniqueIndex;not null" json:"submissionId"`
	LearnerID     uint                  `gorm:"index;not null" json:"learnerId"`
	Score         float64               `gorm:"not null" json:"score"`
	Category      ComprehensionCategory `gorm:"type:varchar(20);not null" json:"category"`
	Action        RecommendedAction     `gorm:"type:varchar(20);not null" json:"action"`
	Feedback      string                `gorm:"type:text" json:"feedback"`
	Suggestions   json.RawMessage       `gorm:"type:json" json:"suggestions"`
	Encouragement string                `gorm:"type:text" json:"encouragement"`
	// AdminNote 管理员复核批注，事后追加
	AdminNote string `gorm:"type:text" json:"adminNote"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
