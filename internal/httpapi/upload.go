package httpapi

import (
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldtrace/signalstudio/internal/apperr"
)

// saveUpload writes the multipart field named field into Deps.WorkDir
// under a fresh random name that preserves the original extension, and
// returns the path it was written to. Used by every flow that accepts a
// raw file upload ahead of an async pipeline step (convert/concat/EDA).
func (d *Deps) saveUpload(c *gin.Context, field string) (string, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		apperr.Abort(c, apperr.Validation("missing file field: "+field))
		return "", false
	}
	return d.saveUploadFile(c, fh)
}

func (d *Deps) saveUploadFile(c *gin.Context, fh *multipart.FileHeader) (string, bool) {
	if err := os.MkdirAll(d.WorkDir, 0o755); err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return "", false
	}

	name := uuid.NewString() + filepath.Ext(fh.Filename)
	dest := filepath.Join(d.WorkDir, name)
	if err := c.SaveUploadedFile(fh, dest); err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return "", false
	}
	return dest, true
}
