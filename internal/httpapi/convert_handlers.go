package httpapi

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

func (d *Deps) registerConvertRoutes(api *gin.RouterGroup) {
	g := api.Group("/convert")
	g.Use(d.requireAuth())

	g.POST("/upload", d.handleConvertUpload)
	g.POST("/start", d.handleConvertStart)
	g.GET("/status/:task", d.handleConvertStatus)
	g.GET("/download/:task", d.handleConvertDownload)
}

func (d *Deps) handleConvertUpload(c *gin.Context) {
	inputToken, ok := d.saveUpload(c, "file")
	if !ok {
		return
	}

	resp := gin.H{"input": filepath.Base(inputToken)}
	if fh, err := c.FormFile("dbc"); err == nil {
		dbcToken, ok := d.saveUploadFile(c, fh)
		if !ok {
			return
		}
		resp["dbc"] = filepath.Base(dbcToken)
	}
	c.JSON(http.StatusCreated, resp)
}

type convertStartRequest struct {
	Input  string  `json:"input" validate:"required"`
	DBC    string  `json:"dbc,omitempty"`
	Raster float64 `json:"raster,omitempty" validate:"omitempty,gt=0"`
}

func (d *Deps) handleConvertStart(c *gin.Context) {
	var req convertStartRequest
	if !bindJSON(c, &req) {
		return
	}

	inputPath, err := d.resolveWorkPath(req.Input)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	var dbcPath string
	if req.DBC != "" {
		dbcPath, err = d.resolveWorkPath(req.DBC)
		if err != nil {
			apperr.Abort(c, err.(*apperr.AppError))
			return
		}
	}

	user := currentUser(c)
	task := d.Pipeline.SubmitConvert(user.ID, inputPath, dbcPath, req.Raster)
	c.JSON(http.StatusAccepted, task)
}

func (d *Deps) handleConvertStatus(c *gin.Context) {
	taskID, ok := requiredParam(c, "task")
	if !ok {
		return
	}
	user := currentUser(c)

	task, err := d.Pipeline.Get(taskID, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, task)
}

func (d *Deps) handleConvertDownload(c *gin.Context) {
	taskID, ok := requiredParam(c, "task")
	if !ok {
		return
	}
	user := currentUser(c)

	task, err := d.Pipeline.Get(taskID, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	if task.Status != models.TaskCompleted || task.OutputPath == "" {
		apperr.Abort(c, apperr.Conflict("task has not completed"))
		return
	}
	c.FileAttachment(task.OutputPath, filepath.Base(task.OutputPath))
}
