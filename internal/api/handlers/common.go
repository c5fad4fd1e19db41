package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func apiError(err error) APIError {
	code := utils.CodeOf(err)
	if code == "" {
		code = utils.CodeInternal
	}
	return APIError{Code: code, Message: utils.UserMessage(err)}
}

// writeError renders err with its status and a message fit for the candidate.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(utils.HTTPStatus(err), apiError(err))
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
