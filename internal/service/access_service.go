package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

type instructorChecker interface {
	HasInstructor(ctx context.Context, classID, userID string) (bool, error)
}

// AccessService decides whether the caller may read a class or a student's report.
type AccessService struct {
	classes instructorChecker
	logger  *zap.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(classes instructorChecker, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{classes: classes, logger: logger}
}

// CanViewClass allows admins everywhere and teachers on classes they instruct.
func (s *AccessService) CanViewClass(ctx context.Context, claims *models.JWTClaims, classID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		ok, err := s.classes.HasInstructor(ctx, classID, claims.UserID)
		if err != nil {
			return appErrors.Internal(err, "failed to verify class access")
		}
		if !ok {
			s.logger.Sugar().Infow("class access denied", "user_id", claims.UserID, "class_id", classID)
			return appErrors.Clone(appErrors.ErrForbidden, "not an instructor of this class")
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

// CanViewStudent additionally lets a student read their own report.
func (s *AccessService) CanViewStudent(ctx context.Context, claims *models.JWTClaims, classID, studentID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		if claims.StudentID != "" && claims.StudentID == studentID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "students may only view their own report")
	}
	return s.CanViewClass(ctx, claims, classID)
}
