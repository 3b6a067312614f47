package service

import (
	"context"
	"encoding/json"
	"fmt"
	"mfs_literacy_backend/internal/config"
	"mfs_literacy_backend/internal/model"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(content string) string {
	msg := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(msg)
	return string(data)
}

func feedbackJSON(score float64) string {
	return fmt.Sprintf(`{"score": %g, "positive_feedback": "不错", "suggestions": ["多用连接词"], "encouragement": "继续加油", "recommended_action": "hold"}`, score)
}

func newEvaluator(baseURL string, maxRetries int) *EvaluatorService {
	return NewEvaluatorService(config.EvaluatorConfig{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		Model:             "test-model",
		Timeout:           2 * time.Second,
		MaxRetries:        maxRetries,
		RequestsPerMinute: 600,
	})
}

func TestEvaluateParsesStructuredFeedback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, chatResponse(feedbackJSON(72)))
	}))
	defer srv.Close()

	eval, err := newEvaluator(srv.URL, 0).Evaluate(context.Background(), "A fine essay about dogs.", 5, []string{"animals"})
	require.NoError(t, err)

	assert.Equal(t, 72.0, eval.Score)
	assert.Equal(t, model.CategoryGood, eval.Category)
	assert.Equal(t, model.ActionHold, eval.Action)
	assert.Equal(t, "不错", eval.Feedback)
	assert.Equal(t, "继续加油", eval.Encouragement)
}

func TestEvaluateStripsMarkdownFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("```json\n"+feedbackJSON(90)+"\n```"))
	}))
	defer srv.Close()

	eval, err := newEvaluator(srv.URL, 0).Evaluate(context.Background(), "Essay text.", 2, nil)
	require.NoError(t, err)

	assert.Equal(t, model.CategoryExcellent, eval.Category)
}

func TestEvaluateRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, chatResponse(feedbackJSON(50)))
	}))
	defer srv.Close()

	eval, err := newEvaluator(srv.URL, 2).Evaluate(context.Background(), "Essay text.", 2, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, model.CategoryAdequate, eval.Category)
}

func TestEvaluateExhaustedRetriesReturnHTTPFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newEvaluator(srv.URL, 1).Evaluate(context.Background(), "Essay text.", 2, nil)
	require.Error(t, err)

	var ee *EvaluatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EvalErrHTTP, ee.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEvaluateContentPolicyNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"code": "content_policy", "message": "rejected"}}`)
	}))
	defer srv.Close()

	_, err := newEvaluator(srv.URL, 3).Evaluate(context.Background(), "Essay text.", 2, nil)
	require.Error(t, err)

	var ee *EvaluatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EvalErrContentPolicy, ee.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEvaluateMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("这不是JSON"))
	}))
	defer srv.Close()

	_, err := newEvaluator(srv.URL, 0).Evaluate(context.Background(), "Essay text.", 2, nil)
	require.Error(t, err)

	var ee *EvaluatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EvalErrMalformed, ee.Code)
}

func TestEvaluateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, chatResponse(feedbackJSON(50)))
	}))
	defer srv.Close()

	s := NewEvaluatorService(config.EvaluatorConfig{
		BaseURL:           srv.URL,
		Timeout:           50 * time.Millisecond,
		MaxRetries:        0,
		RequestsPerMinute: 600,
	})

	_, err := s.Evaluate(context.Background(), "Essay text.", 2, nil)
	require.Error(t, err)

	var ee *EvaluatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EvalErrTimeout, ee.Code)
}

func TestEvaluateRejectsEmptyEssay(t *testing.T) {
	_, err := newEvaluator("http://unreachable", 0).Evaluate(context.Background(), "   ", 0, nil)
	require.Error(t, err)

	var ee *EvaluatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EvalErrMalformed, ee.Code)
}

func TestNormalizeClampsScore(t *testing.T) {
	eval := normalizeEvaluation(&feedbackPayload{Score: 150})
	assert.Equal(t, 100.0, eval.Score)
	assert.Equal(t, model.CategoryExcellent, eval.Category)

	eval = normalizeEvaluation(&feedbackPayload{Score: -20})
	assert.Equal(t, 0.0, eval.Score)
	assert.Equal(t, model.CategoryNeedsSupport, eval.Category)
}

func TestNormalizeActionOverrideOnlyDownward(t *testing.T) {
	// 低分时模型说 advance 不算数
	eval := normalizeEvaluation(&feedbackPayload{Score: 30, RecommendedAction: "advance"})
	assert.Equal(t, model.ActionNeedsSupport, eval.Action)

	// 高分时模型可以压到 needs_support
	eval = normalizeEvaluation(&feedbackPayload{Score: 90, RecommendedAction: "needs_support"})
	assert.Equal(t, model.ActionNeedsSupport, eval.Action)

	// 高分时模型说 hold 不能阻止 advance 默认值
	eval = normalizeEvaluation(&feedbackPayload{Score: 90, RecommendedAction: "hold"})
	assert.Equal(t, model.ActionAdvance, eval.Action)
}
