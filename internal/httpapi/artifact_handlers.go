package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/compute"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/fieldtrace/signalstudio/internal/sandbox"
)

// registerArtifactRoutes wires the layout/script/computed-variable/report
// families. Layouts and scripts are JSON artifact CRUD; computed
// variables mutate a live recording session; script runs go through the
// sandbox and persist their outcome as a report.
func (d *Deps) registerArtifactRoutes(api *gin.RouterGroup) {
	layouts := api.Group("/layouts")
	layouts.Use(d.requireAuth())
	layouts.GET("", d.handleListLayouts)
	layouts.POST("", d.handleCreateLayout)
	layouts.GET("/:id", d.handleGetLayout)
	layouts.PUT("/:id", d.handleUpdateLayout)
	layouts.DELETE("/:id", d.handleDeleteLayout)

	scripts := api.Group("/scripts")
	scripts.Use(d.requireAuth())
	scripts.GET("", d.handleListScripts)
	scripts.POST("", d.handleCreateScript)
	scripts.GET("/allowed-modules", d.handleAllowedModules)
	scripts.POST("/validate", d.handleValidateCode)
	scripts.GET("/:id", d.handleGetScript)
	scripts.PUT("/:id", d.handleUpdateScript)
	scripts.DELETE("/:id", d.handleDeleteScript)
	scripts.GET("/:id/preview", d.handlePreviewScript)
	scripts.POST("/:id/run", d.handleRunScript)

	vars := api.Group("")
	vars.Use(d.requireAuth())
	vars.POST("/create-variable", d.handleCreateVariable)
	vars.GET("/computed-variables", d.handleListVariables)
	vars.PUT("/computed-variables/:name", d.handleUpdateVariable)
	vars.DELETE("/computed-variables/:name", d.handleDeleteVariable)

	reports := api.Group("/reports")
	reports.Use(d.requireAuth())
	reports.GET("", d.handleListReports)
	reports.GET("/:id", d.handleGetReport)
	reports.GET("/:id/download", d.handleDownloadReport)
	reports.DELETE("/:id", d.handleDeleteReport)
}

// --- Layouts ---

type layoutRequest struct {
	Name        string            `json:"name" validate:"required,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Body        models.LayoutBody `json:"body"`
}

func (d *Deps) handleListLayouts(c *gin.Context) {
	user := currentUser(c)
	layouts, err := d.Artifacts.ListLayouts(c.Request.Context(), user.ID, c.Query("include_default") != "false")
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, layouts)
}

func (d *Deps) handleCreateLayout(c *gin.Context) {
	var req layoutRequest
	if !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)
	layout, err := d.Artifacts.CreateLayout(c.Request.Context(), user.ID, req.Name, req.Description, req.Body)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusCreated, layout)
}

func (d *Deps) handleGetLayout(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	layout, err := d.Artifacts.GetLayout(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, layout)
}

func (d *Deps) handleUpdateLayout(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	var req layoutRequest
	if !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)
	layout, err := d.Artifacts.UpdateLayout(c.Request.Context(), id, user.ID, req.Name, req.Description, req.Body)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, layout)
}

func (d *Deps) handleDeleteLayout(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	if err := d.Artifacts.DeleteLayout(c.Request.Context(), id, user.ID); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- Scripts ---

type scriptRequest struct {
	Name        string            `json:"name" validate:"required,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Body        models.ScriptBody `json:"body"`
}

func (d *Deps) handleListScripts(c *gin.Context) {
	user := currentUser(c)
	scripts, err := d.Artifacts.ListScripts(c.Request.Context(), user.ID, c.Query("include_default") != "false")
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, scripts)
}

func (d *Deps) handleCreateScript(c *gin.Context) {
	var req scriptRequest
	if !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)
	script, err := d.Artifacts.CreateScript(c.Request.Context(), user.ID, req.Name, req.Description, req.Body)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusCreated, script)
}

func (d *Deps) handleGetScript(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	script, err := d.Artifacts.GetScript(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, script)
}

func (d *Deps) handleUpdateScript(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	var req scriptRequest
	if !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)
	script, err := d.Artifacts.UpdateScript(c.Request.Context(), id, user.ID, req.Name, req.Description, req.Body)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, script)
}

func (d *Deps) handleDeleteScript(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	if err := d.Artifacts.DeleteScript(c.Request.Context(), id, user.ID); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handlePreviewScript renders a script's generated source without
// executing it, returning the source alongside its static safety verdict.
func (d *Deps) handlePreviewScript(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	code, err := d.Artifacts.RenderScript(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	validation, err := sandbox.Validate(code)
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"script_id": id,
		"code":      code,
		"safety":    validation,
	})
}

// runScriptRequest optionally names a live recording session whose loaded
// signals are injected into the sandbox namespace as plain arrays.
type runScriptRequest struct {
	Session string `json:"session,omitempty"`
}

// handleRunScript renders a script to source, executes it in the
// sandbox, and persists the outcome as a report artifact the /reports
// family serves afterwards.
func (d *Deps) handleRunScript(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	var req runScriptRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)

	script, err := d.Artifacts.GetScript(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	code, err := d.Artifacts.RenderScript(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	data, ok := d.sandboxData(c, req.Session, user.ID)
	if !ok {
		return
	}

	result, err := sandbox.Execute(c.Request.Context(), code, data, d.Sandbox)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	report := gin.H{
		"script_id":     id,
		"script_name":   script.Name,
		"ran_at":        time.Now().UTC(),
		"success":       result.Success,
		"output":        result.Output,
		"error":         result.Error,
		"executionTime": result.ExecutionTime,
		"result":        result.Result,
	}
	stored, err := d.Store.SaveJSON(c.Request.Context(), user.ID, models.CategoryAnalyses,
		fmt.Sprintf("%s-report.json", script.Name), report, "generated report")
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	if _, err := d.Store.UpdateMeta(c.Request.Context(), stored.ID, user.ID,
		"generated report", map[string]any{"artifact": "report", "script_id": id}); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"report_id":     stored.ID,
		"success":       result.Success,
		"output":        result.Output,
		"error":         result.Error,
		"executionTime": result.ExecutionTime,
	})
}

// sandboxData materializes the injectable namespace for a run: the named
// session's already-loaded signals as {name: {timestamps, values}}. An
// empty session name injects nothing.
func (d *Deps) sandboxData(c *gin.Context, sessionID, userID string) (map[string]any, bool) {
	data := map[string]any{}
	if sessionID == "" {
		return data, true
	}
	if !validID(sessionID) {
		apperr.Abort(c, apperr.Validation("invalid session"))
		return nil, false
	}
	if !d.ownsSession(c, sessionID, userID) {
		return nil, false
	}

	summaries, err := d.Sessions.ListSignals(c.Request.Context(), sessionID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return nil, false
	}
	signals := map[string]any{}
	for _, sum := range summaries {
		if !sum.Loaded {
			continue
		}
		sig, err := d.Sessions.Signal(sessionID, sum.Index)
		if err != nil {
			continue
		}
		signals[sig.Name] = map[string]any{
			"timestamps": sig.Timestamps,
			"values":     sig.Values,
			"unit":       sig.Unit,
		}
	}
	data["signals"] = signals
	return data, true
}

type validateCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

func (d *Deps) handleValidateCode(c *gin.Context) {
	var req validateCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	validation, err := sandbox.Validate(req.Code)
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, validation)
}

func (d *Deps) handleAllowedModules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modules": sandbox.AllowedModules()})
}

// --- Computed variables ---

// computedVarRequest binds single-letter variables to signal names within
// a recording session. An empty session targets the caller's implicit
// Sources session (keyed by user id).
type computedVarRequest struct {
	Session     string            `json:"session,omitempty"`
	Name        string            `json:"name" validate:"required,max=100"`
	Unit        string            `json:"unit" validate:"max=50"`
	Description string            `json:"description" validate:"max=500"`
	Formula     string            `json:"formula" validate:"required,max=500"`
	Mapping     map[string]string `json:"mapping" validate:"required,min=1"`
}

func (d *Deps) variableSession(c *gin.Context, requested, userID string) (string, bool) {
	sessionID := requested
	if sessionID == "" {
		sessionID = userID
	} else if !validID(sessionID) {
		apperr.Abort(c, apperr.Validation("invalid session"))
		return "", false
	}
	if !d.ownsSession(c, sessionID, userID) {
		return "", false
	}
	return sessionID, true
}

// createVariable evaluates the formula over the session's signals —
// preloading any bound signal that hasn't been touched yet — and
// registers the result as a computed signal in that session.
func (d *Deps) createVariable(c *gin.Context, sessionID string, req computedVarRequest) (*models.Signal, bool) {
	// Bound signals must be materialized before the evaluator sees them.
	for _, name := range req.Mapping {
		sig, err := d.Sessions.SignalByName(sessionID, name)
		if err != nil {
			apperr.Abort(c, apperr.Validation(fmt.Sprintf("signal %q not found", name)))
			return nil, false
		}
		if !sig.Loaded {
			if _, err := d.Sessions.Preload(c.Request.Context(), sessionID, sig.Index); err != nil {
				apperr.Abort(c, err.(*apperr.AppError))
				return nil, false
			}
		}
	}

	summaries, err := d.Sessions.ListSignals(c.Request.Context(), sessionID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return nil, false
	}

	sig, err := compute.Create(compute.Request{
		Name:        req.Name,
		Unit:        req.Unit,
		Description: req.Description,
		Formula:     req.Formula,
		Mapping:     req.Mapping,
	}, func(name string) (*models.Signal, error) {
		return d.Sessions.SignalByName(sessionID, name)
	}, len(summaries))
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return nil, false
	}

	if err := d.Sessions.AddComputedSignal(sessionID, sig); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return nil, false
	}
	return sig, true
}

func (d *Deps) handleCreateVariable(c *gin.Context) {
	var req computedVarRequest
	if !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)
	sessionID, ok := d.variableSession(c, req.Session, user.ID)
	if !ok {
		return
	}

	if _, err := d.Sessions.SignalByName(sessionID, req.Name); err == nil {
		apperr.Abort(c, apperr.Conflict(fmt.Sprintf("a signal named %q already exists", req.Name)))
		return
	}

	sig, ok := d.createVariable(c, sessionID, req)
	if !ok {
		return
	}
	d.invalidateViewCache(c, sessionID)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"signal": gin.H{
			"name":  sig.Name,
			"unit":  sig.Unit,
			"index": sig.Index,
			"color": sig.Color,
		},
	})
}

func (d *Deps) handleListVariables(c *gin.Context) {
	user := currentUser(c)
	sessionID, ok := d.variableSession(c, c.Query("session"), user.ID)
	if !ok {
		return
	}

	summaries, err := d.Sessions.ListSignals(c.Request.Context(), sessionID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	out := make([]models.SignalSummary, 0)
	for _, sum := range summaries {
		if sum.Computed {
			out = append(out, sum)
		}
	}
	c.JSON(http.StatusOK, out)
}

// handleUpdateVariable replaces a computed signal in place: the old one
// is deleted, then the new formula is evaluated and registered under the
// same name. Only computed signals may be replaced, enforced by
// DeleteComputedSignal.
func (d *Deps) handleUpdateVariable(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		apperr.Abort(c, apperr.Validation("invalid name"))
		return
	}
	var req computedVarRequest
	if !bindJSON(c, &req) {
		return
	}
	user := currentUser(c)
	sessionID, ok := d.variableSession(c, req.Session, user.ID)
	if !ok {
		return
	}

	if err := d.Sessions.DeleteComputedSignal(sessionID, name); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	sig, ok := d.createVariable(c, sessionID, req)
	if !ok {
		return
	}
	d.invalidateViewCache(c, sessionID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"signal": gin.H{
			"name":  sig.Name,
			"unit":  sig.Unit,
			"index": sig.Index,
			"color": sig.Color,
		},
	})
}

func (d *Deps) handleDeleteVariable(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		apperr.Abort(c, apperr.Validation("invalid name"))
		return
	}
	user := currentUser(c)
	sessionID, ok := d.variableSession(c, c.Query("session"), user.ID)
	if !ok {
		return
	}

	if err := d.Sessions.DeleteComputedSignal(sessionID, name); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	d.invalidateViewCache(c, sessionID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- Reports ---

func (d *Deps) handleListReports(c *gin.Context) {
	user := currentUser(c)
	files, err := d.Store.List(c.Request.Context(), user.ID, models.CategoryAnalyses, false)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	reports := make([]*models.StoredFile, 0)
	for _, f := range files {
		if kind, _ := f.Metadata["artifact"].(string); kind == "report" {
			reports = append(reports, f)
		}
	}
	c.JSON(http.StatusOK, reports)
}

// reportFile loads a stored file and verifies it actually is a report,
// so the /reports ids can't be used to read arbitrary analyses files.
func (d *Deps) reportFile(c *gin.Context, id, userID string) (*models.StoredFile, bool) {
	file, err := d.Store.GetFile(c.Request.Context(), id, userID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return nil, false
	}
	if kind, _ := file.Metadata["artifact"].(string); kind != "report" {
		apperr.Abort(c, apperr.NotFound("report"))
		return nil, false
	}
	return file, true
}

func (d *Deps) handleGetReport(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	if _, ok := d.reportFile(c, id, user.ID); !ok {
		return
	}
	var body map[string]any
	if err := d.Store.ReadJSON(c.Request.Context(), id, user.ID, &body); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, body)
}

func (d *Deps) handleDownloadReport(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	file, ok := d.reportFile(c, id, user.ID)
	if !ok {
		return
	}
	path, _, err := d.Store.GetPath(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.FileAttachment(path, file.OriginalName)
}

func (d *Deps) handleDeleteReport(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	if _, ok := d.reportFile(c, id, user.ID); !ok {
		return
	}
	if err := d.Store.Delete(c.Request.Context(), id, user.ID); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
