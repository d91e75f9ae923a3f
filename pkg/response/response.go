package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

const exposeDetailsKey = "response_expose_details"

// Envelope represents the common response contract.
type Envelope struct {
	Status        bool        `json:"status"`
	Message       string      `json:"message"`
	Description   string      `json:"description,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	TotalStudents *int        `json:"totalStudents,omitempty"`
	ID            *int64      `json:"id,omitempty"`
}

// ExposeDetails controls whether 500 responses carry the underlying error text.
func ExposeDetails(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(exposeDetailsKey, enabled)
		c.Next()
	}
}

// JSON writes the envelope with the given status code.
func JSON(c *gin.Context, status int, envelope Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, envelope)
}

// OK responds with HTTP 200 and a successful envelope.
func OK(c *gin.Context, message, description string, data interface{}) {
	JSON(c, http.StatusOK, Envelope{Status: true, Message: message, Description: description, Data: data})
}

// List responds with HTTP 200 including the total row count.
func List(c *gin.Context, message, description string, data interface{}, total int) {
	JSON(c, http.StatusOK, Envelope{Status: true, Message: message, Description: description, Data: data, TotalStudents: &total})
}

// Created responds with HTTP 201 Created and the generated identifier.
func Created(c *gin.Context, message, description string, data interface{}, id int64) {
	JSON(c, http.StatusCreated, Envelope{Status: true, Message: message, Description: description, Data: data, ID: &id})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	envelope := Envelope{Status: false, Message: appErr.Message, Description: appErr.Description}
	if appErr.Status >= http.StatusInternalServerError && appErr.Err != nil && c.GetBool(exposeDetailsKey) {
		envelope.Description = appErr.Message
		envelope.Message = appErr.Err.Error()
	}
	JSON(c, appErr.Status, envelope)
}
