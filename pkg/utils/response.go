package utils

import (
	"github.com/gin-gonic/gin"
)

// Format response standar biar frontend enak bacanya
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`  // omitempty: kalau null, ga usah dimunculin
	Error   string      `json:"error,omitempty"` // Detail error mentah (buat debugging frontend)
}

func APIResponse(c *gin.Context, code int, success bool, message string, data interface{}) {
	c.JSON(code, Response{
		Success: success,
		Message: message,
		Data:    data,
	})
}

// APIError sama kayak APIResponse tapi bawa detail error.
// Dipakai endpoint interaktif: error ditelan di sini, jangan sampai bocor jadi panic.
func APIError(c *gin.Context, code int, message string, err error) {
	resp := Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(code, resp)
}
