package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/middleware"
	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

// requireActor fetches the authenticated caller or writes a 401.
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes the body and writes a 400 on failure.
func bindJSON(c *gin.Context, dest interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, msg))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || size < 1 {
		size = 20
	}
	return page, size
}

// cacheMeta merges the cache-hit flag into the response metadata.
func cacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	middleware.SetCacheHit(c, hit)
	return middleware.ExtractMeta(c)
}

// readUpload pulls one multipart file, reading at most limit+1 bytes so oversized
// files still reach the service's size check.
func readUpload(c *gin.Context, field string, limit int64) ([]byte, *multipart.FileHeader, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, field+" file is required"))
		return nil, nil, false
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return nil, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return nil, nil, false
	}
	return data, header, true
}
