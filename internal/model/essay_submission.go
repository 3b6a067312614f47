package model

import "encoding/json"

// EssaySubmission 作文提交记录，创建后不可变，评估结果单独挂接
// swagger:model EssaySubmission
type EssaySubmission struct {
	BaseModel
	LearnerID uint     `gorm:"not null;uniqueIndex:idx_learner_seq,priority:1" json:"learnerId"`
	Learner   *Learner `gorm:"foreignKey:LearnerID" json:"learner,omitempty"`
	// Seq 该学习者的第几篇作文，从1开始
	Seq  int    `gorm:"not null;uniqueIndex:idx_learner_seq,priority:2" json:"seq"`
	Text string `gorm:"type:text;not null" json:"text"`
	// Fingerprint 正文的 BLAKE2b-256 摘要，用于发现重复提交
	Fingerprint string `gorm:"size:64;index" json:"-"`
	WordCount   int    `json:"wordCount"`
	// LessonContext 最近学过的课程/主题ID列表
	LessonContext json.RawMessage `gorm:"type:json" json:"lessonContext"`

	// 可读性指标，提交时由服务端计算
	FleschEase      float64 `json:"fleschEase"`
	FleschKincaid   float64 `json:"fleschKincaid"`
	ReadabilityBand string  `gorm:"size:20" json:"readabilityBand"`

	Evaluation *Evaluation `gorm:"foreignKey:SubmissionID" json:"evaluation,omitempty"`
}

func (EssaySubmission) TableName() string {
	return "essay_submissions"
}
