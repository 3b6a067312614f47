package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/internal/util"
	"mfs_literacy_backend/pkg/logger"
	"mfs_literacy_backend/pkg/monitoring"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// learnerLock 同一学习者的提交串行化状态
// nextSeq 为0表示尚未从库里初始化
type learnerLock struct {
	mu      sync.Mutex
	nextSeq int
}

// SubmissionService 作文提交管道：评分 → 能力估计 → 难度决策 → 告警升级
// 单次提交的全部落库在一个事务内完成
type SubmissionService struct {
	DB             *gorm.DB
	LearnerRepo    *repository.LearnerRepository
	LessonRepo     *repository.LessonRepository
	SubmissionRepo *repository.SubmissionRepository
	EvaluationRepo *repository.EvaluationRepository
	Evaluator      Evaluator
	Proficiency    *ProficiencyService
	Policy         *PolicyService
	Alerts         *AlertService
	Notifier       Notifier
	Archive        *ArchiveService

	mu    sync.Mutex
	locks map[uint]*learnerLock
}

func NewSubmissionService(
	db *gorm.DB,
	learnerRepo *repository.LearnerRepository,
	lessonRepo *repository.LessonRepository,
	submissionRepo *repository.SubmissionRepository,
	evaluationRepo *repository.EvaluationRepository,
	evaluator Evaluator,
	proficiency *ProficiencyService,
	policy *PolicyService,
	alerts *AlertService,
	notifier Notifier,
	archive *ArchiveService,
) *SubmissionService {
	return &SubmissionService{
		DB:             db,
		LearnerRepo:    learnerRepo,
		LessonRepo:     lessonRepo,
		SubmissionRepo: submissionRepo,
		EvaluationRepo: evaluationRepo,
		Evaluator:      evaluator,
		Proficiency:    proficiency,
		Policy:         policy,
		Alerts:         alerts,
		Notifier:       notifier,
		Archive:        archive,
		locks:          make(map[uint]*learnerLock),
	}
}

func (s *SubmissionService) lockFor(learnerID uint) *learnerLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[learnerID]
	if !ok {
		l = &learnerLock{}
		s.locks[learnerID] = l
	}
	return l
}

// Submit 处理一次作文提交
// 评分调用不持有学习者锁；落库前重新持锁并复核序号，被更新提交抢先则返回冲突
func (s *SubmissionService) Submit(ctx context.Context, learnerID uint, req model.SubmitEssayRequest) (*model.SubmissionResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		monitoring.SubmissionCounter.WithLabelValues("rejected").Inc()
		return nil, util.ErrEmptyEssay
	}

	learner, err := s.LearnerRepo.FindByID(learnerID)
	if err != nil {
		monitoring.SubmissionCounter.WithLabelValues("rejected").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLearnerNotFound
		}
		return nil, err
	}

	report := util.AnalyzeReadability(text)
	sum := blake2b.Sum256([]byte(text))
	fingerprint := hex.EncodeToString(sum[:])

	if n, err := s.SubmissionRepo.CountByFingerprint(learnerID, fingerprint); err == nil && n > 0 {
		// 重复提交不拒绝，留给辅导老师判断
		logger.Log.Info("duplicate essay fingerprint",
			zap.Uint("learner_id", learnerID),
			zap.String("fingerprint", fingerprint[:12]),
		)
	}

	topics, lessonContext := s.resolveLessons(req.LessonIDs)

	// 占序：同一学习者的提交必须按序落库
	lock := s.lockFor(learnerID)
	lock.mu.Lock()
	if lock.nextSeq <= learner.EssaySeq {
		lock.nextSeq = learner.EssaySeq + 1
	}
	seq := lock.nextSeq
	lock.nextSeq++
	lock.mu.Unlock()

	// 评分是唯一的外部慢调用，放在锁外执行
	eval, evalErr := s.Evaluator.Evaluate(ctx, text, report.WordCount, topics)
	if evalErr != nil {
		var ee *EvaluatorError
		if !errors.As(evalErr, &ee) {
			// 适配器契约之外的错误不走无评估路径
			s.releaseClaim(lock)
			return nil, evalErr
		}
		logger.Log.Warn("evaluation failed, continuing without evaluation",
			zap.Uint("learner_id", learnerID),
			zap.String("reason", string(ee.Code)),
		)
		eval = nil
	}

	// 取消只在尚未写入任何记录前生效
	if ctx.Err() != nil {
		s.releaseClaim(lock)
		return nil, ctx.Err()
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()

	result, err := s.persist(learnerID, seq, text, fingerprint, report, lessonContext, eval)
	if err != nil {
		lock.nextSeq = 0 // 下次从库里重新初始化
		if errors.Is(err, util.ErrSubmissionConflict) {
			monitoring.SubmissionCounter.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	outcome := "accepted"
	if eval == nil {
		outcome = "evaluation_failed"
	}
	monitoring.SubmissionCounter.WithLabelValues(outcome).Inc()

	s.afterCommit(result, learnerID)
	return result.toSubmissionResult(), nil
}

func (s *SubmissionService) releaseClaim(lock *learnerLock) {
	lock.mu.Lock()
	lock.nextSeq = 0
	lock.mu.Unlock()
}

// persistOutcome 事务产物，提交后驱动归档、通知和缓存
type persistOutcome struct {
	submission *model.EssaySubmission
	evaluation *model.Evaluation
	decision   model.AdjustmentDecision
	estimate   model.ProficiencyEstimate
	mutation   *AlertMutation
}

func (o *persistOutcome) toSubmissionResult() *model.SubmissionResult {
	r := &model.SubmissionResult{
		SubmissionID: o.submission.ID,
		Seq:          o.submission.Seq,
		Evaluation:   o.evaluation,
		Decision:     o.decision,
		Proficiency:  o.estimate,
	}
	if o.mutation != nil {
		r.AlertsOpened = []uint{o.mutation.Alert.ID}
	}
	return r
}

// persist 单事务落库：提交、评估、调整记录、学习者状态、告警变更
// 要么全部持久化，要么全部不写
func (s *SubmissionService) persist(learnerID uint, seq int, text, fingerprint string, report util.ReadabilityReport, lessonContext json.RawMessage, eval *model.Evaluation) (*persistOutcome, error) {
	out := &persistOutcome{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		learner, err := s.LearnerRepo.FindByIDForUpdate(tx, learnerID)
		if err != nil {
			return err
		}

		// 序号复核：评分期间被更新提交抢先即冲突
		if learner.EssaySeq != seq-1 {
			return util.ErrSubmissionConflict
		}

		submission := &model.EssaySubmission{
			LearnerID:       learnerID,
			Seq:             seq,
			Text:            text,
			Fingerprint:     fingerprint,
			WordCount:       report.WordCount,
			LessonContext:   lessonContext,
			FleschEase:      report.FleschEase,
			FleschKincaid:   report.FleschKincaid,
			ReadabilityBand: report.Band,
		}
		if err := s.SubmissionRepo.Create(tx, submission); err != nil {
			return err
		}
		out.submission = submission

		if eval != nil {
			eval.SubmissionID = submission.ID
			eval.LearnerID = learnerID
			if err := s.EvaluationRepo.Create(tx, eval); err != nil {
				return err
			}
			out.evaluation = eval

			// 连续达标计数：good及以上累加，否则清零
			if eval.Category.Rank() >= model.CategoryGood.Rank() {
				learner.ConsecutiveStrong++
			} else {
				learner.ConsecutiveStrong = 0
			}
		}

		est, err := s.Proficiency.Snapshot(tx, learnerID)
		if err != nil {
			return err
		}
		out.estimate = est

		decision := s.Policy.Decide(learner.ReadingLevel, eval, est, learner.ConsecutiveStrong)
		if _, err := s.Policy.Record(tx, learnerID, &submission.ID, decision); err != nil {
			return err
		}
		out.decision = decision

		if decision.NewLevel != decision.PrevLevel {
			learner.ReadingLevel = decision.NewLevel
			learner.ConsecutiveStrong = 0
		}

		mutation, err := s.Alerts.EscalateInTx(tx, learner, &submission.ID, eval, decision, eval == nil)
		if err != nil {
			return err
		}
		out.mutation = mutation

		learner.EssaySeq = seq
		if est.SampleCount > 0 {
			learner.ComprehensionScore = est.Trend
		}
		return s.LearnerRepo.Save(tx, learner)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// afterCommit 事务提交后的尽力而为动作：归档、通知、能力缓存
func (s *SubmissionService) afterCommit(out *persistOutcome, learnerID uint) {
	sub := out.submission
	mutation := out.mutation
	est := out.estimate
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Archive.ArchiveSubmission(ctx, sub)
		if mutation != nil {
			s.Notifier.Notify(ctx, mutation.Alert, mutation.Created)
		}
		s.Proficiency.CacheSnapshot(ctx, learnerID, est)
	}()
}

// resolveLessons 课程上下文只做只读查找，查不到的ID忽略
func (s *SubmissionService) resolveLessons(ids []uint) ([]string, json.RawMessage) {
	if len(ids) == 0 {
		return nil, nil
	}
	lessons, err := s.LessonRepo.FindByIDs(ids)
	if err != nil {
		logger.Log.Warn("lesson lookup failed", zap.Error(err))
		return nil, nil
	}
	topics := make([]string, 0, len(lessons))
	found := make([]uint, 0, len(lessons))
	for _, l := range lessons {
		topics = append(topics, l.Topic)
		found = append(found, l.ID)
	}
	raw, err := json.Marshal(found)
	if err != nil {
		return topics, nil
	}
	return topics, raw
}

// GetSubmission 单条提交详情，带评估
func (s *SubmissionService) GetSubmission(id uint) (*model.EssaySubmission, error) {
	sub, err := s.SubmissionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// History 学习者的提交历史，新作文在前
func (s *SubmissionService) History(learnerID uint, page, limit int) ([]model.EssaySubmission, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.SubmissionRepo.ListByLearner(learnerID, page, limit)
}
