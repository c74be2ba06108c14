package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/middleware"
	"github.com/xxxsen/mpage/internal/model"
	"github.com/xxxsen/mpage/internal/pkg/errcode"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/pkg/response"
	"github.com/xxxsen/mpage/internal/service"
)

type AssetHandler struct {
	assets *service.AssetService
}

func NewAssetHandler(assets *service.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

func (h *AssetHandler) Upload(c *gin.Context) {
	if !middleware.HasPermission(c, model.PermManageContent) {
		response.Error(c, errcode.ErrForbidden, "forbidden")
		return
	}
	if !h.assets.Enabled() {
		response.Error(c, errcode.ErrAssetsDisabled, "uploads are disabled")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	asset, err := h.assets.Upload(c.Request.Context(), file.Filename, opened, file.Size)
	if err != nil {
		if appErr.IsInvalid(err) {
			response.Error(c, errcode.ErrInvalidFile, appErr.Message(err))
			return
		}
		logutil.GetLogger(c.Request.Context()).Error("upload failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("name", file.Filename),
			zap.Error(err),
		)
		response.Error(c, errcode.ErrUploadFailed, "failed to upload file")
		return
	}
	response.Success(c, asset)
}

func (h *AssetHandler) Get(c *gin.Context) {
	rc, contentType, err := h.assets.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		if appErr.IsNotFound(err) || appErr.IsInvalid(err) {
			c.Status(http.StatusNotFound)
			return
		}
		logutil.GetLogger(c.Request.Context()).Error("open asset failed", zap.String("key", c.Param("key")), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
