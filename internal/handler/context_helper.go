package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/charity-tasks-api/internal/middleware"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

func actorFromContext(c *gin.Context) *models.Actor {
	return middleware.ActorFromContext(c)
}

// bindStrictJSON decodes a single JSON object, rejecting unknown fields and
// trailing data. Client supplied ownership fields such as charity_id are
// therefore refused instead of silently dropped.
func bindStrictJSON(c *gin.Context, dst interface{}, message string) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, message+": empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return appErrors.Clone(appErrors.ErrValidation, message+": unexpected trailing data")
	}
	return nil
}
