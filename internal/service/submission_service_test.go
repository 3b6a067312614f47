package service

import (
	"context"
	"errors"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEssay = "The quick brown fox jumps over the lazy dog. It was a fine day."

func TestSubmitPersistsFullRecordSet(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{72}})
	learner := createLearner(t, db, model.LevelIntermediate)

	result, err := pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Seq)
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, model.CategoryGood, result.Evaluation.Category)
	assert.Equal(t, model.ReasonInsufficientEvidence, result.Decision.Reason)
	assert.Empty(t, result.AlertsOpened)

	sub, err := pipeline.GetSubmission(result.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, learner.ID, sub.LearnerID)
	assert.NotEmpty(t, sub.Fingerprint)
	assert.Greater(t, sub.WordCount, 0)
	require.NotNil(t, sub.Evaluation)

	var refreshed model.Learner
	require.NoError(t, db.First(&refreshed, learner.ID).Error)
	assert.Equal(t, 1, refreshed.EssaySeq)
	assert.InDelta(t, 72, refreshed.ComprehensionScore, 0.001)

	var adjustments int64
	require.NoError(t, db.Model(&model.DifficultyAdjustment{}).
		Where("learner_id = ?", learner.ID).Count(&adjustments).Error)
	assert.EqualValues(t, 1, adjustments)
}

func TestSubmitRejectsEmptyEssay(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{72}})
	learner := createLearner(t, db, model.LevelIntermediate)

	_, err := pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: "   "})
	assert.ErrorIs(t, err, util.ErrEmptyEssay)

	var count int64
	require.NoError(t, db.Model(&model.EssaySubmission{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitRejectsUnknownLearner(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{72}})

	_, err := pipeline.Submit(context.Background(), 424242, model.SubmitEssayRequest{Text: sampleEssay})
	assert.ErrorIs(t, err, util.ErrLearnerNotFound)
}

func TestSubmitSustainedProficiencyAdvances(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{90, 88, 91}})
	learner := createLearner(t, db, model.LevelIntermediate)

	var last *model.SubmissionResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
		require.NoError(t, err)
	}

	assert.Equal(t, model.ReasonSustainedProficiency, last.Decision.Reason)
	assert.Equal(t, model.LevelAdvanced, last.Decision.NewLevel)

	var refreshed model.Learner
	require.NoError(t, db.First(&refreshed, learner.ID).Error)
	assert.Equal(t, model.LevelAdvanced, refreshed.ReadingLevel)
	// 升级后计数清零
	assert.Zero(t, refreshed.ConsecutiveStrong)
}

func TestSubmitRepeatedRegressionStepsDownWithUrgentAlert(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{90, 30, 25}})
	learner := createLearner(t, db, model.LevelIntermediate)

	var last *model.SubmissionResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
		require.NoError(t, err)
	}

	assert.Equal(t, model.ReasonRepeatedRegression, last.Decision.Reason)
	assert.Equal(t, model.LevelBeginner, last.Decision.NewLevel)
	require.Len(t, last.AlertsOpened, 1)

	var alerts []model.Alert
	require.NoError(t, db.Where("learner_id = ? AND type = ? AND status = ?",
		learner.ID, model.AlertNeedsSupport, model.AlertOpen).Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertPriorityUrgent, alerts[0].Priority)
}

func TestSubmitEvaluatorFailureStillPersists(t *testing.T) {
	db := newTestDB(t)
	failing := &scriptedEvaluator{fail: &EvaluatorError{Code: EvalErrTimeout, Err: context.DeadlineExceeded}}
	pipeline := newPipeline(t, db, failing)
	learner := createLearner(t, db, model.LevelIntermediate)

	result, err := pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
	require.NoError(t, err)

	assert.Nil(t, result.Evaluation)
	assert.Equal(t, model.ReasonNoEvaluation, result.Decision.Reason)
	assert.Equal(t, model.LevelIntermediate, result.Decision.NewLevel)
	require.Len(t, result.AlertsOpened, 1)

	// 提交本身可检索
	sub, err := pipeline.GetSubmission(result.SubmissionID)
	require.NoError(t, err)
	assert.Nil(t, sub.Evaluation)

	var alerts []model.Alert
	require.NoError(t, db.Where("learner_id = ? AND type = ?",
		learner.ID, model.AlertEvaluationFailed).Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertPriorityHigh, alerts[0].Priority)
}

func TestSubmitAdjustmentChainStaysValid(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{90, 88, 91, 30, 20, 15}})
	learner := createLearner(t, db, model.LevelIntermediate)

	for i := 0; i < 6; i++ {
		_, err := pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
		require.NoError(t, err)
	}

	var chain []model.DifficultyAdjustment
	require.NoError(t, db.Where("learner_id = ?", learner.ID).
		Order("created_at asc, id asc").Find(&chain).Error)
	require.Len(t, chain, 6)
	for i := 0; i < len(chain)-1; i++ {
		assert.Equal(t, chain[i].NewLevel, chain[i+1].PrevLevel, "chain broken at %d", i)
	}
}

func TestSubmitOvertakenSubmissionConflicts(t *testing.T) {
	db := newTestDB(t)
	evaluator := &scriptedEvaluator{
		scores:   []float64{70, 70},
		gate:     make(chan struct{}),
		gateText: "slow essay about a very patient turtle",
		entered:  make(chan struct{}),
	}
	pipeline := newPipeline(t, db, evaluator)
	learner := createLearner(t, db, model.LevelIntermediate)

	type outcome struct {
		result *model.SubmissionResult
		err    error
	}
	slowDone := make(chan outcome, 1)
	go func() {
		r, err := pipeline.Submit(context.Background(), learner.ID,
			model.SubmitEssayRequest{Text: evaluator.gateText})
		slowDone <- outcome{r, err}
	}()

	// 等慢提交占住序号1并进入评分
	select {
	case <-evaluator.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow submission never reached the evaluator")
	}

	// 快提交占序号2，但序号1还未落库，落库时冲突
	_, err := pipeline.Submit(context.Background(), learner.ID,
		model.SubmitEssayRequest{Text: sampleEssay})
	assert.ErrorIs(t, err, util.ErrSubmissionConflict)

	// 放行慢提交，正常落库
	close(evaluator.gate)
	out := <-slowDone
	require.NoError(t, out.err)
	assert.Equal(t, 1, out.result.Seq)

	var count int64
	require.NoError(t, db.Model(&model.EssaySubmission{}).
		Where("learner_id = ?", learner.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSubmitCancelledBeforePersist(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{70}})
	learner := createLearner(t, db, model.LevelIntermediate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Submit(ctx, learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var count int64
	require.NoError(t, db.Model(&model.EssaySubmission{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHistoryReturnsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	pipeline := newPipeline(t, db, &scriptedEvaluator{scores: []float64{70, 80}})
	learner := createLearner(t, db, model.LevelIntermediate)

	for i := 0; i < 2; i++ {
		_, err := pipeline.Submit(context.Background(), learner.ID, model.SubmitEssayRequest{Text: sampleEssay})
		require.NoError(t, err)
	}

	subs, total, err := pipeline.History(learner.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, subs, 2)
	assert.Equal(t, 2, subs[0].Seq)
	assert.Equal(t, 1, subs[1].Seq)
	require.NotNil(t, subs[0].Evaluation)
	assert.Equal(t, 80.0, subs[0].Evaluation.Score)
}
