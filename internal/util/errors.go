package util

import "errors"

var (
	ErrLearnerNotFound    = errors.New("学习者不存在")
	ErrEmptyEssay         = errors.New("作文内容不能为空")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrInvalidFilter      = errors.New("invalid filter")

	// ErrSubmissionConflict 同一学习者的更新提交已先行落库，调用方应重试
	ErrSubmissionConflict = errors.New("a newer submission for this learner was persisted first, please retry")

	// ErrDuplicateOpenAlert 写入时发现同类 open 告警重复，属于内部一致性缺陷，不做静默修复
	ErrDuplicateOpenAlert = errors.New("duplicate open alert for (learner, type): atomic-write discipline violated")

	// ErrAlreadyEvaluated 给已有评估的提交再挂评估，同样视为内部缺陷
	ErrAlreadyEvaluated = errors.New("submission already has an evaluation")
)
