package service

import (
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalWith(score float64) *model.Evaluation {
	category := model.CategoryForScore(score)
	return &model.Evaluation{
		Score:    score,
		Category: category,
		Action:   model.ActionForCategory(category),
	}
}

func TestDecideNoEvaluation(t *testing.T) {
	p := NewPolicyService(nil)

	d := p.Decide(model.LevelIntermediate, nil, model.ProficiencyEstimate{}, 0)

	assert.Equal(t, model.LevelIntermediate, d.NewLevel)
	assert.Equal(t, model.ReasonNoEvaluation, d.Reason)
	assert.True(t, d.Escalate)
}

func TestDecideRepeatedRegression(t *testing.T) {
	p := NewPolicyService(nil)

	d := p.Decide(model.LevelIntermediate, evalWith(25), model.ProficiencyEstimate{Regression: true}, 0)

	assert.Equal(t, model.LevelBeginner, d.NewLevel)
	assert.Equal(t, model.ReasonRepeatedRegression, d.Reason)
	assert.True(t, d.Escalate)
}

func TestDecideRegressionFloorsAtBeginner(t *testing.T) {
	p := NewPolicyService(nil)

	d := p.Decide(model.LevelBeginner, evalWith(10), model.ProficiencyEstimate{Regression: true}, 0)

	assert.Equal(t, model.LevelBeginner, d.NewLevel)
	assert.Equal(t, model.ReasonRepeatedRegression, d.Reason)
}

func TestDecideSingleLowScoreHolds(t *testing.T) {
	p := NewPolicyService(nil)

	d := p.Decide(model.LevelIntermediate, evalWith(30), model.ProficiencyEstimate{}, 0)

	assert.Equal(t, model.LevelIntermediate, d.NewLevel)
	assert.Equal(t, model.ReasonSingleLowScore, d.Reason)
	assert.True(t, d.Escalate)
}

func TestDecideSustainedProficiency(t *testing.T) {
	p := NewPolicyService(nil)

	// 连续第3篇达标才升级
	d := p.Decide(model.LevelIntermediate, evalWith(91), model.ProficiencyEstimate{}, 3)
	assert.Equal(t, model.LevelAdvanced, d.NewLevel)
	assert.Equal(t, model.ReasonSustainedProficiency, d.Reason)
	assert.False(t, d.Escalate)

	// 第2篇保级
	d = p.Decide(model.LevelIntermediate, evalWith(91), model.ProficiencyEstimate{}, 2)
	assert.Equal(t, model.LevelIntermediate, d.NewLevel)
	assert.Equal(t, model.ReasonInsufficientEvidence, d.Reason)
}

func TestDecideSustainedProficiencyCapsAtAdvanced(t *testing.T) {
	p := NewPolicyService(nil)

	d := p.Decide(model.LevelAdvanced, evalWith(95), model.ProficiencyEstimate{}, 6)

	assert.Equal(t, model.LevelAdvanced, d.NewLevel)
	assert.Equal(t, model.ReasonSustainedProficiency, d.Reason)
}

func TestDecideInsufficientEvidence(t *testing.T) {
	p := NewPolicyService(nil)

	// good 档位动作为 hold
	d := p.Decide(model.LevelIntermediate, evalWith(70), model.ProficiencyEstimate{}, 1)

	assert.Equal(t, model.LevelIntermediate, d.NewLevel)
	assert.Equal(t, model.ReasonInsufficientEvidence, d.Reason)
	assert.False(t, d.Escalate)
}

func TestRecordAppendsValidChain(t *testing.T) {
	db := newTestDB(t)
	adjustmentRepo := repository.NewAdjustmentRepository(db)
	p := NewPolicyService(adjustmentRepo)
	learner := createLearner(t, db, model.LevelIntermediate)

	decisions := []model.AdjustmentDecision{
		{PrevLevel: model.LevelIntermediate, NewLevel: model.LevelIntermediate, Reason: model.ReasonInsufficientEvidence},
		{PrevLevel: model.LevelIntermediate, NewLevel: model.LevelAdvanced, Reason: model.ReasonSustainedProficiency},
		{PrevLevel: model.LevelAdvanced, NewLevel: model.LevelIntermediate, Reason: model.ReasonRepeatedRegression},
	}
	for _, d := range decisions {
		_, err := p.Record(db, learner.ID, nil, d)
		require.NoError(t, err)
	}

	chain, err := adjustmentRepo.ListByLearner(learner.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	for i := 0; i < len(chain)-1; i++ {
		assert.Equal(t, chain[i].NewLevel, chain[i+1].PrevLevel)
	}
}

func TestRecordRejectsBrokenChain(t *testing.T) {
	db := newTestDB(t)
	p := NewPolicyService(repository.NewAdjustmentRepository(db))
	learner := createLearner(t, db, model.LevelIntermediate)

	_, err := p.Record(db, learner.ID, nil, model.AdjustmentDecision{
		PrevLevel: model.LevelIntermediate, NewLevel: model.LevelAdvanced, Reason: model.ReasonSustainedProficiency,
	})
	require.NoError(t, err)

	// 链尾是 advanced，却声称从 beginner 出发
	_, err = p.Record(db, learner.ID, nil, model.AdjustmentDecision{
		PrevLevel: model.LevelBeginner, NewLevel: model.LevelBeginner, Reason: model.ReasonInsufficientEvidence,
	})
	assert.Error(t, err)
}
