// Package handler holds helpers shared by the HTTP handlers.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/middleware"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/pkg/errors"
)

// Actor returns the authenticated caller.
func Actor(c *gin.Context) (model.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, errors.Unauthorized("authentication required")
	}
	return actor, nil
}

// ParseID reads a uuid path parameter.
func ParseID(c *gin.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, errors.Validationf("invalid %s", param)
	}
	return id, nil
}

// BindJSON decodes and validates the request body.
func BindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return middleware.BindingError(err)
	}
	return nil
}
