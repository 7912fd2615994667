package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/store"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// setOverrideRequest is the JSON body for POST /api/apps/:app/overrides,
// flattening values.OverrideValue for the wire.
type setOverrideRequest struct {
	Name           string     `json:"name" binding:"required"`
	Value          string     `json:"value"`
	SubAppID       *int       `json:"subAppId,omitempty"`
	DataCenter     int32      `json:"dataCenter"`
	ExpirationTime *time.Time `json:"expirationTime,omitempty"`
	ExpectedCommit string     `json:"expectedCommit,omitempty"`
}

type clearOverrideRequest struct {
	Name           string `json:"name" binding:"required"`
	SubAppID       *int   `json:"subAppId,omitempty"`
	DataCenter     int32  `json:"dataCenter"`
	ExpectedCommit string `json:"expectedCommit,omitempty"`
}

type restoreRequest struct {
	Snapshot values.OverridesSnapshot `json:"snapshot"`
}

func (h *handlers) listApps(c *gin.Context) {
	names, err := h.store.GetAppNames(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apps": names})
}

func (h *handlers) getSnapshot(c *gin.Context) {
	admin := h.admin(c)
	snap, err := admin.GetSnapshot(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) getCommit(c *gin.Context) {
	admin := h.admin(c)
	commit, err := admin.GetCurrentCommit(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commit": commit})
}

func (h *handlers) getSubApps(c *gin.Context) {
	admin := h.admin(c)
	subApps, err := admin.GetSubApps(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subApps": subApps})
}

func (h *handlers) getMetadata(c *gin.Context) {
	admin := h.admin(c)
	meta, err := admin.GetSettingsMetadata(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *handlers) setOverride(c *gin.Context) {
	var req setOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	admin := h.admin(c)
	override := values.OverrideValue{
		Name:           req.Name,
		StringValue:    req.Value,
		SubAppID:       req.SubAppID,
		DataCenter:     tier.DataCenter(req.DataCenter),
		ExpirationTime: req.ExpirationTime,
	}
	snap, ok, err := admin.SetOverride(c.Request.Context(), override, currentUser(c), values.Commit(req.ExpectedCommit))
	if err != nil {
		writeBackendError(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusConflict, "COMMIT_MISMATCH", "expected commit no longer current")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) clearOverride(c *gin.Context) {
	var req clearOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	admin := h.admin(c)
	key := values.NewOverrideKey(req.Name, req.SubAppID, tier.DataCenter(req.DataCenter))
	snap, ok, err := admin.ClearOverride(c.Request.Context(), key, currentUser(c), values.Commit(req.ExpectedCommit))
	if err != nil {
		writeBackendError(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusConflict, "COMMIT_MISMATCH", "expected commit no longer current")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) restoreSnapshot(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	admin := h.admin(c)
	snap, err := admin.RestoreSnapshot(c.Request.Context(), req.Snapshot, currentUser(c))
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) admin(c *gin.Context) *store.AdminClient {
	return store.GetAdminClient(h.store, c.Param("app"))
}

func writeBackendError(c *gin.Context, err error) {
	var schemaErr *nfigerr.SchemaError
	var notFound *nfigerr.SettingNotFoundError
	switch {
	case errors.As(err, &notFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &schemaErr):
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
