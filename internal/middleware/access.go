package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/response"
)

type classAccess interface {
	CanViewClass(ctx context.Context, claims *models.JWTClaims, classID string) error
	CanViewStudent(ctx context.Context, claims *models.JWTClaims, classID, studentID string) error
}

// ClassAccess guards routes scoped by :classId. When the route also carries
// :studentId the student-level check applies instead.
func ClassAccess(access classAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		classID := strings.TrimSpace(c.Param("classId"))
		if classID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId is required"))
			c.Abort()
			return
		}

		var err error
		if studentID := strings.TrimSpace(c.Param("studentId")); studentID != "" {
			err = access.CanViewStudent(c.Request.Context(), claims, classID, studentID)
		} else {
			err = access.CanViewClass(c.Request.Context(), claims, classID)
		}
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
