package httpapi

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

func (d *Deps) registerConcatRoutes(api *gin.RouterGroup) {
	g := api.Group("/concat")
	g.Use(d.requireAuth())

	g.POST("/upload-single", d.handleConcatUploadSingle)
	g.POST("/start", d.handleConcatStart)
	g.GET("/status/:task", d.handleConcatStatus)
	g.GET("/download/:task", d.handleConcatDownload)
}

// handleConcatUploadSingle accepts one recording at a time; the client
// collects the returned tokens and submits the full ordered list to
// /concat/start. There is no server-side "batch" state between calls —
// each upload is just a file sitting in WorkDir until referenced.
func (d *Deps) handleConcatUploadSingle(c *gin.Context) {
	token, ok := d.saveUpload(c, "file")
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"input": filepath.Base(token)})
}

type concatStartRequest struct {
	Inputs []string `json:"inputs" validate:"required,min=2"`
}

func (d *Deps) handleConcatStart(c *gin.Context) {
	var req concatStartRequest
	if !bindJSON(c, &req) {
		return
	}

	paths := make([]string, 0, len(req.Inputs))
	for _, token := range req.Inputs {
		path, err := d.resolveWorkPath(token)
		if err != nil {
			apperr.Abort(c, err.(*apperr.AppError))
			return
		}
		paths = append(paths, path)
	}

	user := currentUser(c)
	task := d.Pipeline.SubmitConcat(user.ID, paths)
	c.JSON(http.StatusAccepted, task)
}

func (d *Deps) handleConcatStatus(c *gin.Context) {
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

func (d *Deps) handleConcatDownload(c *gin.Context) {
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
