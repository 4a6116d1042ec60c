package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// envelope is the common response body. Exactly one of Data or Error is set.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Meta    *listMeta   `json:"meta,omitempty"`
}

type listMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// respondError aborts the chain so later middleware cannot overwrite the body.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, envelope{Error: msg, Code: code})
}

func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta:    &listMeta{Total: total, Page: page, Limit: limit},
	})
}

// parsePagination reads ?page and ?limit, clamping to 1..100 items per page.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}
