package service

import (
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedEvaluations 按提交顺序写入评估（旧的在前）
func seedEvaluations(t *testing.T, db *gorm.DB, learnerID uint, scores ...float64) {
	t.Helper()
	for i, score := range scores {
		category := model.CategoryForScore(score)
		sub := &model.EssaySubmission{LearnerID: learnerID, Seq: i + 1, Text: "seed"}
		require.NoError(t, db.Create(sub).Error)
		eval := &model.Evaluation{
			SubmissionID: sub.ID,
			LearnerID:    learnerID,
			Score:        score,
			Category:     category,
			Action:       model.ActionForCategory(category),
		}
		require.NoError(t, db.Create(eval).Error)
	}
}

func TestSnapshotEmptyHistory(t *testing.T) {
	db := newTestDB(t)
	s := NewProficiencyService(repository.NewEvaluationRepository(db), nil, 3)
	learner := createLearner(t, db, model.LevelIntermediate)

	est, err := s.Snapshot(db, learner.ID)
	require.NoError(t, err)

	assert.Zero(t, est.Trend)
	assert.False(t, est.Regression)
	assert.Zero(t, est.SampleCount)
}

func TestSnapshotTrendWeightsRecentScores(t *testing.T) {
	db := newTestDB(t)
	s := NewProficiencyService(repository.NewEvaluationRepository(db), nil, 3)
	learner := createLearner(t, db, model.LevelIntermediate)
	seedEvaluations(t, db, learner.ID, 60, 80)

	est, err := s.Snapshot(db, learner.ID)
	require.NoError(t, err)

	// 0.5*80 + 0.5*60
	assert.InDelta(t, 70, est.Trend, 0.001)
	assert.Equal(t, 2, est.SampleCount)
	assert.False(t, est.Regression)
}

func TestSnapshotWindowDropsOldScores(t *testing.T) {
	db := newTestDB(t)
	s := NewProficiencyService(repository.NewEvaluationRepository(db), nil, 3)
	learner := createLearner(t, db, model.LevelIntermediate)
	seedEvaluations(t, db, learner.ID, 10, 80, 80, 80)

	est, err := s.Snapshot(db, learner.ID)
	require.NoError(t, err)

	// 首篇10分已滑出窗口
	assert.InDelta(t, 80, est.Trend, 0.001)
	assert.Equal(t, 3, est.SampleCount)
}

func TestSnapshotRegressionOnTwoDecreasingTransitions(t *testing.T) {
	db := newTestDB(t)
	s := NewProficiencyService(repository.NewEvaluationRepository(db), nil, 3)
	learner := createLearner(t, db, model.LevelIntermediate)
	seedEvaluations(t, db, learner.ID, 90, 30, 25)

	est, err := s.Snapshot(db, learner.ID)
	require.NoError(t, err)

	assert.True(t, est.Regression)
}

func TestSnapshotNoRegressionOnPlateau(t *testing.T) {
	db := newTestDB(t)
	s := NewProficiencyService(repository.NewEvaluationRepository(db), nil, 3)
	learner := createLearner(t, db, model.LevelIntermediate)
	seedEvaluations(t, db, learner.ID, 90, 30, 30)

	est, err := s.Snapshot(db, learner.ID)
	require.NoError(t, err)

	assert.False(t, est.Regression)
}

func TestSnapshotNoRegressionWithTwoEvaluations(t *testing.T) {
	db := newTestDB(t)
	s := NewProficiencyService(repository.NewEvaluationRepository(db), nil, 3)
	learner := createLearner(t, db, model.LevelIntermediate)
	seedEvaluations(t, db, learner.ID, 90, 30)

	est, err := s.Snapshot(db, learner.ID)
	require.NoError(t, err)

	assert.False(t, est.Regression)
}

func TestSetWindowIgnoresInvalidValues(t *testing.T) {
	s := NewProficiencyService(nil, nil, 3)

	s.SetWindow(0)
	assert.Equal(t, 3, s.Window())

	s.SetWindow(5)
	assert.Equal(t, 5, s.Window())
}
