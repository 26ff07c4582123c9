package service_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/repository/mocks"
	"github.com/limbo/studytrack/internal/service"
	"github.com/limbo/studytrack/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	service.InitValidator()
	m.Run()
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsersRepositoryI(ctrl)
	us := service.NewUserService(repo)
	userID := uuid.New()
	testCases := []struct {
		Desc         string
		Error        error
		Request      service.RegisterRequest
		MockPrepFunc func()
	}{
		{
			Desc:    "success",
			Request: service.RegisterRequest{Name: "student", Password: "password123"},
			MockPrepFunc: func() {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(userID, nil)
			},
		},
		{
			Desc:    "error user exists",
			Error:   errorvalues.ErrUserExists,
			Request: service.RegisterRequest{Name: "student", Password: "password123"},
			MockPrepFunc: func() {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(uuid.Nil, errorvalues.ErrUserExists)
			},
		},
		{
			Desc:         "error short password",
			Error:        errorvalues.ErrInvalidUserData,
			Request:      service.RegisterRequest{Name: "student", Password: "short"},
			MockPrepFunc: func() {},
		},
		{
			Desc:         "error name starts with digit",
			Error:        errorvalues.ErrInvalidUserData,
			Request:      service.RegisterRequest{Name: "1student", Password: "password123"},
			MockPrepFunc: func() {},
		},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			user, err := us.Register(ctx, &tc.Request)
			if tc.Error != nil {
				assert.ErrorIs(t, err, tc.Error)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, user.ID)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(tc.Request.Password)))
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsersRepositoryI(ctrl)
	us := service.NewUserService(repo)
	hash, err := service.Hash("password123")
	require.NoError(t, err)
	stored := &entity.User{ID: uuid.New(), Name: "student", PasswordHash: hash}
	testCases := []struct {
		Desc         string
		Error        error
		Password     string
		MockPrepFunc func()
	}{
		{
			Desc:     "success",
			Password: "password123",
			MockPrepFunc: func() {
				repo.EXPECT().FindByName(gomock.Any(), "student").Return(stored, nil)
			},
		},
		{
			Desc:     "error wrong password",
			Error:    errorvalues.ErrWrongCredentials,
			Password: "password321",
			MockPrepFunc: func() {
				repo.EXPECT().FindByName(gomock.Any(), "student").Return(stored, nil)
			},
		},
		{
			Desc:     "error user not found",
			Error:    errorvalues.ErrUserNotFound,
			Password: "password123",
			MockPrepFunc: func() {
				repo.EXPECT().FindByName(gomock.Any(), "student").Return(nil, errorvalues.ErrUserNotFound)
			},
		},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			user, err := us.Login(ctx, "student", tc.Password)
			if tc.Error != nil {
				assert.ErrorIs(t, err, tc.Error)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *stored, *user)
		})
	}
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsersRepositoryI(ctrl)
	us := service.NewUserService(repo)
	hash, err := service.Hash("password123")
	require.NoError(t, err)
	stored := &entity.User{ID: uuid.New(), Name: "student", PasswordHash: hash}
	ctx := context.Background()
	t.Run("deleted", func(t *testing.T) {
		repo.EXPECT().FindByID(gomock.Any(), stored.ID).Return(stored, nil)
		repo.EXPECT().Delete(gomock.Any(), stored.ID).Return(nil)
		assert.NoError(t, us.DeleteAccount(ctx, stored.ID, "password123"))
	})
	t.Run("failed to delete w/ wrong password", func(t *testing.T) {
		repo.EXPECT().FindByID(gomock.Any(), stored.ID).Return(stored, nil)
		assert.ErrorIs(t, us.DeleteAccount(ctx, stored.ID, "nope"), errorvalues.ErrWrongCredentials)
	})
	t.Run("failed to delete unexist user", func(t *testing.T) {
		repo.EXPECT().FindByID(gomock.Any(), stored.ID).Return(nil, errorvalues.ErrUserNotFound)
		assert.ErrorIs(t, us.DeleteAccount(ctx, stored.ID, "password123"), errorvalues.ErrUserNotFound)
	})
}
