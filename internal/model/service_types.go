package model

// ProficiencyEstimate 能力追踪器的输出，难度调整策略的只读输入
type ProficiencyEstimate struct {
	// Trend 窗口内分数的指数加权均值
	Trend float64 `json:"trend"`
	// Regression 最近两次相邻评估的分数均严格下降
	Regression bool `json:"regression"`
	// SampleCount 窗口内参与计算的评估条数
	SampleCount int `json:"sampleCount"`
}

// AdjustmentDecision 决策表的单次输出
type AdjustmentDecision struct {
	PrevLevel ReadingLevel     `json:"prevLevel"`
	NewLevel  ReadingLevel     `json:"newLevel"`
	Reason    AdjustmentReason `json:"reason"`
	// Escalate 软性升级信号，由告警引擎消费
	Escalate bool `json:"-"`
}

// SubmissionResult 提交管道对外的完整结果
type SubmissionResult struct {
	SubmissionID uint                `json:"submissionId"`
	Seq          int                 `json:"seq"`
	Evaluation   *Evaluation         `json:"evaluation,omitempty"`
	Decision     AdjustmentDecision  `json:"decision"`
	Proficiency  ProficiencyEstimate `json:"proficiency"`
	// AlertsOpened 本次提交新开或抬升的告警ID
	AlertsOpened []uint `json:"alertsOpened"`
}

// SubmitEssayRequest 提交作文请求体
// swagger:model SubmitEssayRequest
type SubmitEssayRequest struct {
	Text      string `json:"text" binding:"required"`
	LessonIDs []uint `json:"lessonIds"`
}

// ResolveAlertRequest 关闭告警请求体
// swagger:model ResolveAlertRequest
type ResolveAlertRequest struct {
	Notes string `json:"notes"`
}

// AdminNoteRequest 管理员复核批注请求体
// swagger:model AdminNoteRequest
type AdminNoteRequest struct {
	Note string `json:"note" binding:"required"`
}
