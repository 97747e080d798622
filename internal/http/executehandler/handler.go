package executehandler

import (
	"errors"
	"net/http"

	"codesync/internal/services/execution"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ExecuteBody struct {
	Code       string `json:"code"        example:"print(1)"`
	LanguageID int    `json:"language_id" example:"71"`
	Input      string `json:"input"       example:""`
} // @name ExecuteRequest

type ExecuteResponse struct {
	Success bool              `json:"success"`
	Result  *execution.Result `json:"result"`
} // @name ExecuteResponse

type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
} // @name ExecuteErrorResponse

type Handler struct {
	svc execution.IExecutionService
}

func New(svc execution.IExecutionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/execute", h.execute)
}

// @Summary		Execute code
// @Description	Runs the source through the configured judge and returns its outputs.
// @Tags			Execute
// @Param			body	body		ExecuteBody	true	"Source payload"
// @Success		200		{object}	ExecuteResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		408		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/api/execute [post]
func (h *Handler) execute(ginCtx *gin.Context) {
	var body ExecuteBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil || body.Code == "" || body.LanguageID == 0 {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Message: "Code and language_id are required"})
		return
	}

	res, err := h.svc.Execute(ginCtx.Request.Context(), execution.Request{
		SourceCode: body.Code,
		LanguageID: body.LanguageID,
		Stdin:      body.Input,
	})
	switch {
	case err == nil:
		ginCtx.JSON(http.StatusOK, ExecuteResponse{Success: true, Result: res})
	case errors.Is(err, execution.ErrInvalidRequest):
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Message: "Code and language_id are required"})
	case errors.Is(err, execution.ErrTimeout):
		ginCtx.JSON(http.StatusRequestTimeout, ErrorResponse{Message: "Code execution timed out."})
	default:
		zap.L().Error("execute.http", zap.Int("language", body.LanguageID), zap.Error(err))
		ginCtx.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to execute code.",
			Error:   err.Error(),
		})
	}
}
