package service

import (
	"fmt"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// advanceEvery 连续达标第3、6、9…篇时升级
const advanceEvery = 3

// PolicyService 难度调整决策表
// 规则按优先级排成单一有序列表，新增规则只加分支不改旧分支
type PolicyService struct {
	AdjustmentRepo *repository.AdjustmentRepository
}

func NewPolicyService(adjustmentRepo *repository.AdjustmentRepository) *PolicyService {
	return &PolicyService{AdjustmentRepo: adjustmentRepo}
}

// Decide 纯函数：不读库不写库
// streak 为算上本篇的连续达标计数（档位≥good且未换级）
func (s *PolicyService) Decide(currentLevel model.ReadingLevel, eval *model.Evaluation, est model.ProficiencyEstimate, streak int) model.AdjustmentDecision {
	d := model.AdjustmentDecision{PrevLevel: currentLevel, NewLevel: currentLevel}

	switch {
	// 规则1：没有拿到评估，保级并留痕
	case eval == nil:
		d.Reason = model.ReasonNoEvaluation
		d.Escalate = true

	// 规则2：建议帮扶且出现回归，降一级（最低级封底）
	case eval.Action == model.ActionNeedsSupport && est.Regression:
		d.NewLevel = currentLevel.StepDown()
		d.Reason = model.ReasonRepeatedRegression
		d.Escalate = true

	// 规则3：单次低分不降级，只发软性升级信号
	case eval.Action == model.ActionNeedsSupport:
		d.Reason = model.ReasonSingleLowScore
		d.Escalate = true

	// 规则4：连续达标满一个周期，升一级（最高级封顶）
	case eval.Action == model.ActionAdvance && streak > 0 && streak%advanceEvery == 0:
		d.NewLevel = currentLevel.StepUp()
		d.Reason = model.ReasonSustainedProficiency

	// 规则5：证据不足，保级
	default:
		d.Reason = model.ReasonInsufficientEvidence
	}

	return d
}

// Record 每次决策都追加一条调整记录，保级同样入账
// 入账前校验链式约束：上一条的 NewLevel 必须等于本条的 PrevLevel
func (s *PolicyService) Record(tx *gorm.DB, learnerID uint, submissionID *uint, d model.AdjustmentDecision) (*model.DifficultyAdjustment, error) {
	last, err := s.AdjustmentRepo.LastByLearner(tx, learnerID)
	if err != nil {
		return nil, err
	}
	if last != nil && last.NewLevel != d.PrevLevel {
		// 链断裂意味着并发纪律被破坏，直接让事务失败
		logger.Log.Error("difficulty adjustment chain broken",
			zap.Uint("learner_id", learnerID),
			zap.String("chain_tail", string(last.NewLevel)),
			zap.String("decision_prev", string(d.PrevLevel)),
		)
		return nil, fmt.Errorf("adjustment chain broken for learner %d: tail %s, decision starts at %s",
			learnerID, last.NewLevel, d.PrevLevel)
	}

	adj := &model.DifficultyAdjustment{
		LearnerID:    learnerID,
		SubmissionID: submissionID,
		PrevLevel:    d.PrevLevel,
		NewLevel:     d.NewLevel,
		Reason:       d.Reason,
	}
	if err := s.AdjustmentRepo.Create(tx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}
