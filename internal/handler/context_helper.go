package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/middleware"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/response"
)

// actorID returns the id of the account resolved by the route guard, writing 401 when absent.
func actorID(c *gin.Context) (string, bool) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return user.ID, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, size
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
