package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mfs_literacy_backend/internal/config"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/util"
	"mfs_literacy_backend/pkg/logger"
	"mfs_literacy_backend/pkg/monitoring"
	"mfs_literacy_backend/pkg/tracing"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EvaluatorErrorCode 评分失败的归类
type EvaluatorErrorCode string

const (
	EvalErrTimeout       EvaluatorErrorCode = "timeout"
	EvalErrMalformed     EvaluatorErrorCode = "malformed"
	EvalErrContentPolicy EvaluatorErrorCode = "content_policy"
	EvalErrHTTP          EvaluatorErrorCode = "http"
)

// EvaluatorError 对外统一的评分失败，管道不得用默认分数顶替
type EvaluatorError struct {
	Code EvaluatorErrorCode
	Err  error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("evaluator failure (%s): %v", e.Code, e.Err)
}

func (e *EvaluatorError) Unwrap() error {
	return e.Err
}

// Evaluator 作文评分能力的边界接口
type Evaluator interface {
	Evaluate(ctx context.Context, essayText string, wordCount int, lessonContext []string) (*model.Evaluation, error)
}

// EvaluatorService 封装外部AI评分服务（OpenAI兼容 chat/completions 接口）
// 只做归一化，从不写库
type EvaluatorService struct {
	mu      sync.RWMutex
	config  config.EvaluatorConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewEvaluatorService(cfg config.EvaluatorConfig) *EvaluatorService {
	s := &EvaluatorService{
		client: &http.Client{},
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig 支持配置热更新
func (s *EvaluatorService) ApplyConfig(cfg config.EvaluatorConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (s *EvaluatorService) snapshot() (config.EvaluatorConfig, *rate.Limiter) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.limiter
}

type evaluatorChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type evaluatorChatRequest struct {
	Model       string                 `json:"model"`
	Messages    []evaluatorChatMessage `json:"messages"`
	Temperature float64                `json:"temperature"`
}

type evaluatorChatResponse struct {
	Choices []struct {
		Message evaluatorChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// feedbackPayload 模型返回的结构化点评
type feedbackPayload struct {
	Score             float64  `json:"score"`
	PositiveFeedback  string   `json:"positive_feedback"`
	Suggestions       []string `json:"suggestions"`
	Encouragement     string   `json:"encouragement"`
	RecommendedAction string   `json:"recommended_action"`
}

// Evaluate 对一篇作文做一次评分。失败重试有界、指数退避；
// 重试耗尽后返回 *EvaluatorError，由管道走无评估路径
func (s *EvaluatorService) Evaluate(ctx context.Context, essayText string, wordCount int, lessonContext []string) (*model.Evaluation, error) {
	if strings.TrimSpace(essayText) == "" {
		return nil, &EvaluatorError{Code: EvalErrMalformed, Err: util.ErrEmptyEssay}
	}

	// 字数对不上只记日志，不拒绝
	if actual := util.CountWords(essayText); wordCount >= 0 && actual != wordCount {
		logger.Log.Warn("word count mismatch",
			zap.Int("reported", wordCount),
			zap.Int("actual", actual),
		)
	}

	cfg, limiter := s.snapshot()

	ctx, span := tracing.Tracer.Start(ctx, "evaluator.evaluate")
	defer span.End()

	start := time.Now()
	defer func() {
		monitoring.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr *EvaluatorError
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			monitoring.EvaluatorRetries.Inc()
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &EvaluatorError{Code: EvalErrTimeout, Err: ctx.Err()}
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, &EvaluatorError{Code: EvalErrTimeout, Err: err}
		}

		eval, evalErr := s.callOnce(ctx, cfg, essayText, wordCount, lessonContext)
		if evalErr == nil {
			return eval, nil
		}

		lastErr = evalErr
		// 内容审核拒绝不可重试
		if evalErr.Code == EvalErrContentPolicy {
			break
		}
		logger.Log.Warn("evaluator attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("reason", string(evalErr.Code)),
			zap.Error(evalErr.Err),
		)
	}

	monitoring.EvaluatorFailures.WithLabelValues(string(lastErr.Code)).Inc()
	return nil, lastErr
}

func (s *EvaluatorService) callOnce(ctx context.Context, cfg config.EvaluatorConfig, essayText string, wordCount int, lessonContext []string) (*model.Evaluation, *EvaluatorError) {
	prompt := buildEvaluationPrompt(essayText, wordCount, lessonContext)

	reqBody := evaluatorChatRequest{
		Model: cfg.Model,
		Messages: []evaluatorChatMessage{
			{
				Role:    "system",
				Content: "You are an expert literacy tutor. You assess student essays and return structured feedback as JSON.",
			},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &EvaluatorError{Code: EvalErrMalformed, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, "POST", cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &EvaluatorError{Code: EvalErrHTTP, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &EvaluatorError{Code: EvalErrTimeout, Err: err}
		}
		return nil, &EvaluatorError{Code: EvalErrHTTP, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest && bytes.Contains(body, []byte("content_policy")) {
			return nil, &EvaluatorError{Code: EvalErrContentPolicy, Err: fmt.Errorf("evaluator rejected content: %s", string(body))}
		}
		return nil, &EvaluatorError{Code: EvalErrHTTP, Err: fmt.Errorf("evaluator API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var chatResp evaluatorChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &EvaluatorError{Code: EvalErrMalformed, Err: err}
	}
	if chatResp.Error != nil {
		return nil, &EvaluatorError{Code: EvalErrHTTP, Err: fmt.Errorf("evaluator API error: %s", chatResp.Error.Message)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &EvaluatorError{Code: EvalErrMalformed, Err: fmt.Errorf("evaluator returned no choices")}
	}

	payload, err := parseFeedback(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, &EvaluatorError{Code: EvalErrMalformed, Err: err}
	}

	return normalizeEvaluation(payload), nil
}

func buildEvaluationPrompt(essayText string, wordCount int, lessonContext []string) string {
	var b strings.Builder
	b.WriteString("Assess the following student essay.\n\n")
	if len(lessonContext) > 0 {
		fmt.Fprintf(&b, "Recent lesson topics: %s\n", strings.Join(lessonContext, ", "))
	}
	fmt.Fprintf(&b, "Word count: %d\n\nEssay:\n%s\n\n", wordCount, essayText)
	b.WriteString(`Return your response as a JSON object with this exact structure:
{
    "score": 0-100,
    "positive_feedback": "what the student did well",
    "suggestions": ["specific improvement 1", "specific improvement 2"],
    "encouragement": "a short encouraging closing line",
    "recommended_action": "advance|hold|needs_support"
}`)
	return b.String()
}

// parseFeedback 剥掉模型可能包的 Markdown 代码围栏再解析
func parseFeedback(content string) (*feedbackPayload, error) {
	if strings.Contains(content, "```json") {
		parts := strings.SplitN(content, "```json", 2)
		content = strings.SplitN(parts[1], "```", 2)[0]
	} else if strings.Contains(content, "```") {
		parts := strings.SplitN(content, "```", 3)
		if len(parts) >= 2 {
			content = parts[1]
		}
	}
	content = strings.TrimSpace(content)

	var payload feedbackPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("unparseable evaluator response: %w", err)
	}
	return &payload, nil
}

// normalizeEvaluation 分数夹取到[0,100]，档位严格由分数分段推导；
// 模型的建议动作只允许向下覆盖为 needs_support
func normalizeEvaluation(p *feedbackPayload) *model.Evaluation {
	score := math.Max(0, math.Min(100, p.Score))
	category := model.CategoryForScore(score)
	action := model.ActionForCategory(category)

	if model.RecommendedAction(p.RecommendedAction) == model.ActionNeedsSupport {
		action = model.ActionNeedsSupport
	}

	suggestions, err := json.Marshal(p.Suggestions)
	if err != nil {
		suggestions = []byte("[]")
	}

	return &model.Evaluation{
		Score:         score,
		Category:      category,
		Action:        action,
		Feedback:      p.PositiveFeedback,
		Suggestions:   suggestions,
		Encouragement: p.Encouragement,
	}
}
