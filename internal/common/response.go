package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailErr maps the sentinel taxonomy to HTTP statuses and stable codes.
func FailErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Fail(c, http.StatusBadRequest, 10001, err.Error())
	case errors.Is(err, ErrNotFound):
		Fail(c, http.StatusNotFound, 40004, err.Error())
	case errors.Is(err, ErrIndexUnavailable):
		Fail(c, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, ErrEmptyIngestion):
		Fail(c, http.StatusUnprocessableEntity, 42201, err.Error())
	case errors.Is(err, ErrProvider):
		Fail(c, http.StatusBadGateway, 50201, err.Error())
	case errors.Is(err, ErrPersistence):
		Fail(c, http.StatusInternalServerError, 50002, err.Error())
	default:
		Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
