package controller

import (
	"net/http"

	"github.com/nimburion/devserver/pkg/server/router"
)

// OK sends data as a JSON response with HTTP 200.
func OK(c router.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// Created sends data as a JSON response with HTTP 201.
func Created(c router.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

// Error writes err directly, bypassing the router's error handler.
// Handlers normally just return the error instead.
func Error(c router.Context, err error) error {
	return writeError(c, MapError(err))
}

// BindJSON decodes the request body into dto and validates it.
// Any failure is returned as an *AppError.
func BindJSON(c router.Context, dto interface{}) error {
	if err := c.Bind(dto); err != nil {
		return MapError(err)
	}
	return ValidateDTO(dto)
}
