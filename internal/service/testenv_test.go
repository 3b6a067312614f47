package service

import (
	"context"
	"fmt"
	"io"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/pkg/database"
	"mfs_literacy_backend/pkg/logger"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

var learnerSeq int64

func createLearner(t *testing.T, db *gorm.DB, level model.ReadingLevel) *model.Learner {
	t.Helper()
	n := atomic.AddInt64(&learnerSeq, 1)
	l := &model.Learner{
		Name:         fmt.Sprintf("学习者%d", n),
		Email:        fmt.Sprintf("learner%d@example.com", n),
		Role:         model.Student,
		ReadingLevel: level,
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

// scriptedEvaluator 按预置分数依次返回评估，fail 非空时固定失败
type scriptedEvaluator struct {
	mu     sync.Mutex
	scores []float64
	fail   *EvaluatorError
	// gate 非空时，正文等于 gateText 的调用会阻塞到放行
	gate     chan struct{}
	gateText string
	entered  chan struct{}
}

func (s *scriptedEvaluator) Evaluate(ctx context.Context, essayText string, wordCount int, lessonContext []string) (*model.Evaluation, error) {
	if s.gate != nil && essayText == s.gateText {
		if s.entered != nil {
			close(s.entered)
		}
		<-s.gate
	}
	if s.fail != nil {
		return nil, s.fail
	}

	s.mu.Lock()
	score := s.scores[0]
	if len(s.scores) > 1 {
		s.scores = s.scores[1:]
	}
	s.mu.Unlock()

	category := model.CategoryForScore(score)
	return &model.Evaluation{
		Score:    score,
		Category: category,
		Action:   model.ActionForCategory(category),
		Feedback: "scripted",
	}, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, alert *model.Alert, created bool) {}

func newPipeline(t *testing.T, db *gorm.DB, evaluator Evaluator) *SubmissionService {
	t.Helper()
	evaluationRepo := repository.NewEvaluationRepository(db)
	alertService := NewAlertService(db, repository.NewAlertRepository(db))
	archive := &ArchiveService{Provider: &discardArchive{}}

	return NewSubmissionService(
		db,
		repository.NewLearnerRepository(db),
		repository.NewLessonRepository(db),
		repository.NewSubmissionRepository(db),
		evaluationRepo,
		evaluator,
		NewProficiencyService(evaluationRepo, nil, 3),
		NewPolicyService(repository.NewAdjustmentRepository(db)),
		alertService,
		noopNotifier{},
		archive,
	)
}

type discardArchive struct{}

func (discardArchive) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	return key, nil
}

func (discardArchive) Delete(ctx context.Context, key string) error { return nil }

func (discardArchive) GetURL(key string) string { return key }
