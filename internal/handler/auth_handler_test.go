package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/handler"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockMemberStore struct {
	mock.Mock
}

func (m *MockMemberStore) Create(ctx context.Context, member *model.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberStore) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	args := m.Called(ctx, email)
	member := args.Get(0)
	if member == nil {
		return nil, args.Error(1)
	}
	return member.(*model.Member), args.Error(1)
}

func (m *MockMemberStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	args := m.Called(ctx, id)
	member := args.Get(0)
	if member == nil {
		return nil, args.Error(1)
	}
	return member.(*model.Member), args.Error(1)
}

func (m *MockMemberStore) List(ctx context.Context, f repository.MemberFilter) ([]model.Member, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.Member), args.Error(1)
}

func (m *MockMemberStore) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockMemberStore) UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error {
	return m.Called(ctx, id, hashed).Error(0)
}

func (m *MockMemberStore) UpdateName(ctx context.Context, id uuid.UUID, fullName string) error {
	return m.Called(ctx, id, fullName).Error(0)
}

func (m *MockMemberStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockCompanyStore struct {
	mock.Mock
}

func (m *MockCompanyStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	args := m.Called(ctx, id)
	company := args.Get(0)
	if company == nil {
		return nil, args.Error(1)
	}
	return company.(*model.Company), args.Error(1)
}

func (m *MockCompanyStore) CreateWithAdmin(ctx context.Context, company *model.Company, admin *model.Member) error {
	return m.Called(ctx, company, admin).Error(0)
}

func setupAuthTest() (*gin.Engine, *MockMemberStore) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	log := logrus.New()
	log.SetOutput(io.Discard)

	members := new(MockMemberStore)
	tokens := auth.NewTokenManager("test-secret", time.Hour, time.Minute)
	accounts := service.NewAccountService(members, new(MockCompanyStore), tokens, tokens, nil, log)
	authHandler := handler.NewAuthHandler(accounts)

	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	return r, members
}

func postJSON(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) handler.ErrorDetail {
	var body handler.ErrorBody
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestRegister_Success(t *testing.T) {
	// Arrange
	router, members := setupAuthTest()
	members.On("FindByEmail", mock.Anything, "test@example.com").Return(nil, nil)
	members.On("Create", mock.Anything, mock.AnythingOfType("*model.Member")).Return(nil)

	// Act
	resp := postJSON(router, "/register", handler.RegisterRequest{
		FullName: "Test User",
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	assert.Equal(t, http.StatusCreated, resp.Code)

	var response handler.AuthResponse
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, "Test User", response.User.FullName)
	assert.Equal(t, "test@example.com", response.User.Email)
	assert.NotContains(t, resp.Body.String(), "password")

	members.AssertExpectations(t)
}

func TestRegister_UserAlreadyExists(t *testing.T) {
	// Arrange
	router, members := setupAuthTest()
	existing := &model.Member{ID: uuid.New(), Email: "existing@example.com", FullName: "Existing User"}
	members.On("FindByEmail", mock.Anything, "existing@example.com").Return(existing, nil)

	// Act
	resp := postJSON(router, "/register", handler.RegisterRequest{
		FullName: "Test User",
		Email:    "existing@example.com",
		Password: "password123",
	})

	// Assert
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	detail := decodeError(t, resp)
	assert.Equal(t, "VALIDATION_FAILED", detail.Code)
	assert.Equal(t, "User with this email already exists", detail.Message)

	members.AssertExpectations(t)
}

func TestRegister_MalformedJSON(t *testing.T) {
	router, _ := setupAuthTest()

	req, _ := http.NewRequest("POST", "/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRegister_BindingRejectsInvalidFields(t *testing.T) {
	cases := map[string]handler.RegisterRequest{
		"bad email":      {FullName: "Test User", Email: "a@", Password: "password123"},
		"short password": {FullName: "Test User", Email: "test@example.com", Password: "short"},
		"missing name":   {Email: "test@example.com", Password: "password123"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			router, members := setupAuthTest()

			resp := postJSON(router, "/register", body)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			members.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
			members.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestLogin_Success(t *testing.T) {
	// Arrange
	router, members := setupAuthTest()
	hashedPassword, _ := auth.HashPassword("password123")
	testUser := &model.Member{
		ID:             uuid.New(),
		Email:          "test@example.com",
		HashedPassword: hashedPassword,
		FullName:       "Test User",
		Role:           model.RoleUser,
	}
	members.On("FindByEmail", mock.Anything, "test@example.com").Return(testUser, nil)

	// Act
	resp := postJSON(router, "/login", handler.LoginRequest{Email: "test@example.com", Password: "password123"})

	// Assert
	assert.Equal(t, http.StatusOK, resp.Code)

	var response handler.AuthResponse
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, testUser.FullName, response.User.FullName)
	assert.Equal(t, testUser.ID, response.User.ID)

	members.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	// Arrange
	router, members := setupAuthTest()
	hashedPassword, _ := auth.HashPassword("correct_password")
	testUser := &model.Member{ID: uuid.New(), Email: "test@example.com", HashedPassword: hashedPassword}
	members.On("FindByEmail", mock.Anything, "test@example.com").Return(testUser, nil)

	// Act
	resp := postJSON(router, "/login", handler.LoginRequest{Email: "test@example.com", Password: "wrong_password"})

	// Assert
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	detail := decodeError(t, resp)
	assert.Equal(t, "UNAUTHENTICATED", detail.Code)
	assert.Equal(t, "Invalid credentials", detail.Message)
}

func TestLogin_UserNotFound(t *testing.T) {
	// Arrange
	router, members := setupAuthTest()
	members.On("FindByEmail", mock.Anything, "nonexistent@example.com").Return(nil, nil)

	// Act
	resp := postJSON(router, "/login", handler.LoginRequest{Email: "nonexistent@example.com", Password: "password123"})

	// Assert
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Invalid credentials", decodeError(t, resp).Message)
}
