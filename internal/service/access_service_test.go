package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

type instructorStub struct {
	instructors map[string]string
	err         error
}

func (s instructorStub) HasInstructor(ctx context.Context, classID, userID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.instructors[classID] == userID, nil
}

func TestAccessServiceCanViewClass(t *testing.T) {
	svc := NewAccessService(instructorStub{instructors: map[string]string{"class-1": "teacher-1"}}, nil)
	ctx := context.Background()

	assert.NoError(t, svc.CanViewClass(ctx, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "class-1"))
	assert.NoError(t, svc.CanViewClass(ctx, &models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin}, "class-7"))
	assert.NoError(t, svc.CanViewClass(ctx, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, "class-1"))

	err := svc.CanViewClass(ctx, &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher}, "class-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = svc.CanViewClass(ctx, &models.JWTClaims{UserID: "s", Role: models.RoleStudent, StudentID: "s-alice"}, "class-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = svc.CanViewClass(ctx, nil, "class-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAccessServiceCanViewStudent(t *testing.T) {
	svc := NewAccessService(instructorStub{instructors: map[string]string{"class-1": "teacher-1"}}, nil)
	ctx := context.Background()
	student := &models.JWTClaims{UserID: "u-alice", Role: models.RoleStudent, StudentID: "s-alice"}

	assert.NoError(t, svc.CanViewStudent(ctx, student, "class-1", "s-alice"))
	assert.True(t, appErrors.Is(svc.CanViewStudent(ctx, student, "class-1", "s-bob"), appErrors.ErrForbidden))
	assert.NoError(t, svc.CanViewStudent(ctx, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, "class-1", "s-bob"))
}

func TestAccessServiceLookupFailure(t *testing.T) {
	svc := NewAccessService(instructorStub{err: errors.New("db down")}, nil)
	err := svc.CanViewClass(context.Background(), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, "class-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
