package controller

import (
	"errors"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/internal/service"
	"mfs_literacy_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AlertController struct {
	AlertService   *service.AlertService
	EvaluationRepo *repository.EvaluationRepository
	AdjustmentRepo *repository.AdjustmentRepository
}

func NewAlertController(alertService *service.AlertService, evaluationRepo *repository.EvaluationRepository, adjustmentRepo *repository.AdjustmentRepository) *AlertController {
	return &AlertController{
		AlertService:   alertService,
		EvaluationRepo: evaluationRepo,
		AdjustmentRepo: adjustmentRepo,
	}
}

// @Summary 开放告警列表
// @Description 优先级降序、创建时间升序，可按类型与优先级过滤
// @Tags 管理
// @Security BearerAuth
// @Produce json
// @Param type query string false "告警类型" Enums(low_comprehension, needs_support, evaluation_failed)
// @Param priority query string false "优先级" Enums(low, normal, high, urgent)
// @Success 200 {object} util.Response{data=[]model.Alert}
// @Router /api/admin/alerts [get]
func (c *AlertController) ListOpenAlerts(ctx *gin.Context) {
	alertType := model.AlertType(ctx.Query("type"))
	priority := model.AlertPriority(ctx.Query("priority"))

	alerts, err := c.AlertService.ListOpen(alertType, priority)
	if err != nil {
		if errors.Is(err, util.ErrInvalidFilter) {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, alerts)
}

// @Summary 解除告警
// @Description 幂等：重复解除返回已解除状态
// @Tags 管理
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "告警ID"
// @Param body body model.ResolveAlertRequest true "处理备注"
// @Success 200 {object} util.Response{data=model.Alert}
// @Failure 404 {object} util.Response
// @Router /api/admin/alerts/{id}/resolve [post]
func (c *AlertController) ResolveAlert(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	var req model.ResolveAlertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	alert, err := c.AlertService.Resolve(uint(id), user.UserID, req.Notes)
	if err != nil {
		if errors.Is(err, util.ErrAlertNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, alert)
}

// @Summary 追加评估批注
// @Description 管理员复核批注，评估其余字段不可变
// @Tags 管理
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "评估ID"
// @Param body body model.AdminNoteRequest true "批注内容"
// @Success 200 {object} util.Response{data=model.Evaluation}
// @Failure 404 {object} util.Response
// @Router /api/admin/evaluations/{id}/note [put]
func (c *AlertController) AppendEvaluationNote(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	var req model.AdminNoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	eval, err := c.EvaluationRepo.AppendAdminNote(uint(id), req.Note)
	if err != nil {
		if errors.Is(err, util.ErrEvaluationNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, eval)
}

// @Summary 学习者难度调整链
// @Description 按时间升序返回完整的调整审计记录
// @Tags 管理
// @Security BearerAuth
// @Produce json
// @Param id path int true "学习者ID"
// @Success 200 {object} util.Response{data=[]model.DifficultyAdjustment}
// @Router /api/admin/learners/{id}/adjustments [get]
func (c *AlertController) ListAdjustments(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid learner id")
		return
	}

	adjustments, err := c.AdjustmentRepo.ListByLearner(uint(id))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, adjustments)
}
