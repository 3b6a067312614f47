package model

// AdjustmentReason 决策表命中的规则，按优先级排列
type AdjustmentReason string

const (
	ReasonNoEvaluation         AdjustmentReason = "no-evaluation"
	ReasonRepeatedRegression   AdjustmentReason = "repeated-regression"
	ReasonSingleLowScore       AdjustmentReason = "single-low-score"
	ReasonSustainedProficiency AdjustmentReason = "sustained-proficiency"
	ReasonInsufficientEvidence AdjustmentReason = "insufficient-evidence"
)

// DifficultyAdjustment 难度调整审计日志，按学习者只增不改
// 链式约束：第n条的 NewLevel 必须等于第n+1条的 PrevLevel
// swagger:model DifficultyAdjustment
type DifficultyAdjustment struct {
	BaseModel
	LearnerID    uint             `gorm:"index;not null" json:"learnerId"`
	SubmissionID *uint            `gorm:"index" json:"submissionId"`
	PrevLevel    ReadingLevel     `gorm:"type:varchar(20);not null" json:"prevLevel"`
	NewLevel     ReadingLevel     `gorm:"type:varchar(20);not null" json:"newLevel"`
	Reason       AdjustmentReason `gorm:"type:varchar(30);not null" json:"reason"`
}

func (DifficultyAdjustment) TableName() string {
	return "difficulty_adjustments"
}
