package controller

import (
	"errors"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/service"
	"mfs_literacy_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type EssayController struct {
	SubmissionService  *service.SubmissionService
	ProficiencyService *service.ProficiencyService
}

func NewEssayController(submissionService *service.SubmissionService, proficiencyService *service.ProficiencyService) *EssayController {
	return &EssayController{
		SubmissionService:  submissionService,
		ProficiencyService: proficiencyService,
	}
}

// @Summary 提交作文
// @Description 提交一篇作文，触发评分、能力估计、难度决策与告警升级
// @Tags 作文
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param submission body model.SubmitEssayRequest true "作文内容"
// @Success 201 {object} util.Response{data=model.SubmissionResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/essays [post]
func (c *EssayController) SubmitEssay(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req model.SubmitEssayRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.Submit(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEmptyEssay):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrLearnerNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrSubmissionConflict):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, result)
}

// @Summary 作文提交历史
// @Tags 作文
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/essays/history [get]
func (c *EssayController) GetHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	submissions, total, err := c.SubmissionService.History(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  submissions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 单篇提交详情
// @Tags 作文
// @Security BearerAuth
// @Produce json
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.EssaySubmission}
// @Failure 404 {object} util.Response
// @Router /api/essays/{id} [get]
func (c *EssayController) GetSubmission(ctx *gin.Context) {
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

	sub, err := c.SubmissionService.GetSubmission(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrSubmissionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	// 学生只能看自己的提交
	if user.Role == model.Student && sub.LearnerID != user.UserID {
		util.Forbidden(ctx)
		return
	}

	util.Success(ctx, sub)
}

// @Summary 当前能力估计
// @Description 从缓存读取学习者的能力快照，未命中返回空对象
// @Tags 作文
// @Security BearerAuth
// @Produce json
// @Success 200 {object} util.Response{data=model.ProficiencyEstimate}
// @Router /api/essays/proficiency [get]
func (c *EssayController) GetProficiency(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	est, ok := c.ProficiencyService.CachedSnapshot(ctx.Request.Context(), user.UserID)
	if !ok {
		util.Success(ctx, model.ProficiencyEstimate{})
		return
	}
	util.Success(ctx, est)
}
