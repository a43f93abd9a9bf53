package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/middleware"
	"github.com/fieldtrace/signalstudio/internal/models"
)

// textSanitizer strips HTML from stored free-text fields (descriptions)
// so nothing a user typed can execute when a listing renders it.
var textSanitizer = middleware.NewInputValidator()

func (d *Deps) registerStorageRoutes(api *gin.RouterGroup) {
	g := api.Group("/storage")
	g.Use(d.requireAuth())

	g.GET("/info", d.handleStorageInfo)
	g.GET("/files", d.handleStorageList)
	g.POST("/files/:category", d.handleStorageUpload)
	g.GET("/files/:id", d.handleStorageGet)
	g.PUT("/files/:id", d.handleStorageUpdateMeta)
	g.DELETE("/files/:id", d.handleStorageDelete)
	g.GET("/files/:id/download", d.handleStorageDownload)
	g.GET("/files/:id/content", d.handleStorageContent)
	g.GET("/default", d.responseCache(5*time.Minute), d.handleStorageListDefault)
	g.GET("/default/:id/download", d.handleStorageDownloadDefault)
}

func (d *Deps) handleStorageInfo(c *gin.Context) {
	user := currentUser(c)
	info, err := d.Store.Info(c.Request.Context(), user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (d *Deps) handleStorageList(c *gin.Context) {
	user := currentUser(c)
	category := models.Category(c.Query("category"))

	files, err := d.Store.List(c.Request.Context(), user.ID, category, c.Query("include_default") == "true")
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, files)
}

func (d *Deps) handleStorageUpload(c *gin.Context) {
	category := models.Category(c.Param("category"))
	user := currentUser(c)

	fh, err := c.FormFile("file")
	if err != nil {
		apperr.Abort(c, apperr.Validation("missing file field: file"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	defer f.Close()

	stored, err := d.Store.SaveFile(c.Request.Context(), user.ID, category, fh.Filename, f, fh.Size,
		textSanitizer.SanitizeString(c.PostForm("description")), nil)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (d *Deps) handleStorageGet(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)

	file, err := d.Store.GetFile(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, file)
}

type storageMetaRequest struct {
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (d *Deps) handleStorageUpdateMeta(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	var req storageMetaRequest
	if !bindJSON(c, &req) {
		return
	}

	user := currentUser(c)
	if _, err := d.Store.UpdateMeta(c.Request.Context(), id, user.ID,
		textSanitizer.SanitizeString(req.Description), req.Metadata); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (d *Deps) handleStorageDelete(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)

	if err := d.Store.Delete(c.Request.Context(), id, user.ID); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (d *Deps) handleStorageDownload(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)

	path, file, err := d.Store.GetPath(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.FileAttachment(path, file.OriginalName)
}

func (d *Deps) handleStorageContent(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)

	path, _, err := d.Store.GetPath(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.File(path)
}

func (d *Deps) handleStorageListDefault(c *gin.Context) {
	category := models.Category(c.Query("category"))
	files, err := d.Store.ListDefaults(c.Request.Context(), category)
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, files)
}

func (d *Deps) handleStorageDownloadDefault(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	path, file, err := d.Store.GetPath(c.Request.Context(), id, "")
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.FileAttachment(path, file.OriginalName)
}
