package service

import (
	"context"
	"encoding/json"
	"fmt"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/pkg/logger"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ewmaAlpha 越新的评估权重越大
const ewmaAlpha = 0.5

const proficiencyCacheTTL = 10 * time.Minute

// ProficiencyService 维护学习者的滚动能力估计
// 计算结果只读，供难度调整策略消费
type ProficiencyService struct {
	EvaluationRepo *repository.EvaluationRepository
	Redis          *redis.Client

	mu     sync.RWMutex
	window int
}

func NewProficiencyService(evaluationRepo *repository.EvaluationRepository, rdb *redis.Client, window int) *ProficiencyService {
	if window <= 0 {
		window = 3
	}
	return &ProficiencyService{
		EvaluationRepo: evaluationRepo,
		Redis:          rdb,
		window:         window,
	}
}

// SetWindow 配置热更新入口
func (s *ProficiencyService) SetWindow(window int) {
	if window <= 0 {
		return
	}
	s.mu.Lock()
	s.window = window
	s.mu.Unlock()
}

func (s *ProficiencyService) Window() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// Snapshot 基于事务内可见的评估历史计算当前能力估计
// 必须在持久化本次评估之后调用，使其计入窗口
func (s *ProficiencyService) Snapshot(tx *gorm.DB, learnerID uint) (model.ProficiencyEstimate, error) {
	window := s.Window()

	// 回归判定需要三条评估（两次相邻转移），窗口不足三时多取
	fetch := window
	if fetch < 3 {
		fetch = 3
	}
	evals, err := s.EvaluationRepo.ListRecentByLearner(tx, learnerID, fetch)
	if err != nil {
		return model.ProficiencyEstimate{}, err
	}
	if len(evals) == 0 {
		return model.ProficiencyEstimate{}, nil
	}

	// ListRecentByLearner 新的在前，趋势计算从旧到新
	inWindow := evals
	if len(inWindow) > window {
		inWindow = inWindow[:window]
	}
	trend := inWindow[len(inWindow)-1].Score
	for i := len(inWindow) - 2; i >= 0; i-- {
		trend = ewmaAlpha*inWindow[i].Score + (1-ewmaAlpha)*trend
	}

	regression := false
	if len(evals) >= 3 {
		// evals[0] 最新：两次相邻转移都严格下降才算回归
		regression = evals[0].Score < evals[1].Score && evals[1].Score < evals[2].Score
	}

	return model.ProficiencyEstimate{
		Trend:       trend,
		Regression:  regression,
		SampleCount: len(inWindow),
	}, nil
}

// CacheSnapshot 提交成功后把估计写入Redis，供看板低成本读取
// 失败只记日志，缓存不参与任何决策
func (s *ProficiencyService) CacheSnapshot(ctx context.Context, learnerID uint, est model.ProficiencyEstimate) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(est)
	if err != nil {
		return
	}
	key := fmt.Sprintf("proficiency:%d", learnerID)
	if err := s.Redis.Set(ctx, key, data, proficiencyCacheTTL).Err(); err != nil {
		logger.Log.Warn("failed to cache proficiency snapshot",
			zap.Uint("learner_id", learnerID),
			zap.Error(err),
		)
	}
}

// CachedSnapshot 读缓存，未命中或Redis不可用时返回 false
func (s *ProficiencyService) CachedSnapshot(ctx context.Context, learnerID uint) (model.ProficiencyEstimate, bool) {
	if s.Redis == nil {
		return model.ProficiencyEstimate{}, false
	}
	key := fmt.Sprintf("proficiency:%d", learnerID)
	data, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return model.ProficiencyEstimate{}, false
	}
	var est model.ProficiencyEstimate
	if err := json.Unmarshal(data, &est); err != nil {
		return model.ProficiencyEstimate{}, false
	}
	return est, true
}
