package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/teamtask/internal/auth"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler"
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/repository/memory"
	"github.com/mtlprog/teamtask/internal/service"
)

const testPassword = "password123"

type HandlerTestSuite struct {
	suite.Suite
	store   *memory.Store
	auth    *service.AuthService
	handler *handler.Handler
	mux     *http.ServeMux

	// Test fixtures
	adminToken   string
	managerID    string
	managerToken string
	userID       string
	userToken    string
	otherID      string
	otherToken   string
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.store = memory.New()
	tokens := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           "test-secret",
		AccessTokenDuration: time.Hour,
		Issuer:              "teamtask-test",
	})
	s.auth = service.NewAuthService(s.store, tokens, auth.NewPasswordHasherWithCost(4))
	s.handler = handler.New(s.store, s.auth, nil)
	s.mux = http.NewServeMux()
	s.handler.RegisterRoutes(s.mux)

	_, s.adminToken = s.createUser("admin", domain.RoleSuperAdmin, nil)
	s.managerID, s.managerToken = s.createUser("manager", domain.RoleManager, nil)
	s.userID, s.userToken = s.createUser("user", domain.RoleUser, &s.managerID)
	s.otherID, s.otherToken = s.createUser("other", domain.RoleUser, nil)
}

func (s *HandlerTestSuite) createUser(name string, role domain.Role, managerID *string) (string, string) {
	ctx := context.Background()
	user, err := s.auth.CreateUser(ctx, service.CreateUserParams{
		Username:  name,
		Email:     name + "@example.com",
		Password:  testPassword,
		Role:      role,
		ManagerID: managerID,
	})
	s.Require().NoError(err)

	creds, err := s.auth.Login(ctx, user.Email, testPassword)
	s.Require().NoError(err)
	return user.ID, creds.Token
}

func (s *HandlerTestSuite) makeRequest(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerTestSuite) decode(rr *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(v))
}

func (s *HandlerTestSuite) errorCode(rr *httptest.ResponseRecorder) string {
	var resp dto.ErrorResponse
	s.decode(rr, &resp)
	return resp.Error.Code
}

func (s *HandlerTestSuite) createTask(token string, body map[string]any) dto.TaskResponse {
	rr := s.makeRequest("POST", "/api/v1/tasks", token, body)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var task dto.TaskResponse
	s.decode(rr, &task)
	return task
}

func (s *HandlerTestSuite) TestHealthz() {
	rr := s.makeRequest("GET", "/healthz", "", nil)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerTestSuite) TestAPIMd() {
	rr := s.makeRequest("GET", "/api.md", "", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Header().Get("Content-Type"), "text/markdown")
	s.Contains(rr.Body.String(), "/api/v1/tasks")
}

func (s *HandlerTestSuite) TestSwaggerDoc() {
	rr := s.makeRequest("GET", "/swagger/doc.json", "", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "TeamTask API")
	s.Contains(rr.Body.String(), "/tasks/{id}/status")
}

func (s *HandlerTestSuite) TestRegister_IgnoresProfileFields() {
	rr := s.makeRequest("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "withprofile",
		"email":    "withprofile@example.com",
		"password": testPassword,
		"phone":    "+1 555 0100",
		"address":  "1 Main St",
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	s.NotContains(rr.Body.String(), "555 0100")
	s.NotContains(rr.Body.String(), "Main St")
}

func (s *HandlerTestSuite) TestRegisterAndLogin() {
	rr := s.makeRequest("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "newbie",
		"email":    "newbie@example.com",
		"password": testPassword,
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	var registered dto.AuthResponse
	s.decode(rr, &registered)
	s.Equal("user", registered.User.Role)
	s.Equal("Bearer", registered.TokenType)
	s.NotEmpty(registered.Token)
	s.NotContains(rr.Body.String(), `"password`)

	rr = s.makeRequest("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "dup",
		"email":    "newbie@example.com",
		"password": testPassword,
	})
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal("EMAIL_TAKEN", s.errorCode(rr))

	rr = s.makeRequest("POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "newbie@example.com",
		"password": "wrong-password",
	})
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("INVALID_CREDENTIALS", s.errorCode(rr))

	rr = s.makeRequest("POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "newbie@example.com",
		"password": testPassword,
	})
	s.Require().Equal(http.StatusOK, rr.Code)

	var login dto.AuthResponse
	s.decode(rr, &login)

	rr = s.makeRequest("GET", "/api/v1/me", login.Token, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var me dto.IdentityResponse
	s.decode(rr, &me)
	s.Equal(registered.User.ID, me.ID)
	s.Equal("newbie", me.Username)
}

func (s *HandlerTestSuite) TestUnauthenticated() {
	rr := s.makeRequest("GET", "/api/v1/tasks", "", nil)
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.NotEmpty(rr.Header().Get("WWW-Authenticate"))
	s.Equal("UNAUTHENTICATED", s.errorCode(rr))

	rr = s.makeRequest("GET", "/api/v1/tasks", "garbage", nil)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *HandlerTestSuite) TestCreateTask() {
	task := s.createTask(s.userToken, map[string]any{
		"taskTitle":   "Write report",
		"description": "Quarterly numbers",
		"dueDate":     "2030-01-15",
	})

	s.Equal("Write report", task.TaskTitle)
	s.Equal(s.userID, task.OwnerID)
	s.Equal(s.userID, task.CreatorID)
	s.Equal("pending", task.Status)
	s.False(task.IsOverdue)
	s.Require().NotNil(task.DueDate)
	s.Equal(time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC), task.DueDate.UTC())
	s.Require().Len(task.StatusHistory, 1)
	s.Equal("pending", task.StatusHistory[0].Status)
	s.Require().NotNil(task.StatusHistory[0].ChangedBy)
	s.Equal(s.userID, *task.StatusHistory[0].ChangedBy)
}

func (s *HandlerTestSuite) TestCreateTask_Errors() {
	tests := []struct {
		name     string
		token    string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing title",
			token:    s.userToken,
			body:     map[string]any{"description": "x"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "VALIDATION_ERROR",
		},
		{
			name:     "bad due date",
			token:    s.userToken,
			body:     map[string]any{"taskTitle": "t", "dueDate": "next week"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "VALIDATION_ERROR",
		},
		{
			name:     "user assigns to someone else",
			token:    s.userToken,
			body:     map[string]any{"taskTitle": "t", "userId": s.otherID},
			wantCode: http.StatusForbidden,
			wantErr:  "FORBIDDEN",
		},
		{
			name:     "manager assigns outside team",
			token:    s.managerToken,
			body:     map[string]any{"taskTitle": "t", "userId": s.otherID},
			wantCode: http.StatusForbidden,
			wantErr:  "FORBIDDEN",
		},
		{
			name:     "unknown project",
			token:    s.userToken,
			body:     map[string]any{"taskTitle": "t", "projectId": "00000000-0000-0000-0000-0000000000ff"},
			wantCode: http.StatusNotFound,
			wantErr:  "PROJECT_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.makeRequest("POST", "/api/v1/tasks", tt.token, tt.body)
			s.Equal(tt.wantCode, rr.Code, rr.Body.String())
			s.Equal(tt.wantErr, s.errorCode(rr))
		})
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/tasks", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+s.userToken)
	s.mux.ServeHTTP(rr, req)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("INVALID_JSON", s.errorCode(rr))
}

func (s *HandlerTestSuite) TestManagerAssignsToReport() {
	task := s.createTask(s.managerToken, map[string]any{
		"taskTitle": "Onboarding",
		"userId":    s.userID,
	})
	s.Equal(s.userID, task.OwnerID)
	s.Equal(s.managerID, task.CreatorID)

	rr := s.makeRequest("GET", "/api/v1/tasks/"+task.ID, s.userToken, nil)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerTestSuite) TestListTasks_Scope() {
	s.createTask(s.userToken, map[string]any{"taskTitle": "mine"})
	s.createTask(s.otherToken, map[string]any{"taskTitle": "theirs"})
	s.createTask(s.managerToken, map[string]any{"taskTitle": "managers"})

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"super-admin sees all", s.adminToken, 3},
		{"manager sees own and reports", s.managerToken, 2},
		{"user sees own", s.userToken, 1},
		{"unmanaged user sees own", s.otherToken, 1},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.makeRequest("GET", "/api/v1/tasks", tt.token, nil)
			s.Require().Equal(http.StatusOK, rr.Code)
			var resp dto.TasksListResponse
			s.decode(rr, &resp)
			s.Equal(tt.want, resp.Total)
			s.Len(resp.Tasks, tt.want)
		})
	}
}

func (s *HandlerTestSuite) TestListTasks_StatusFilter() {
	task := s.createTask(s.userToken, map[string]any{"taskTitle": "one"})
	s.createTask(s.userToken, map[string]any{"taskTitle": "two"})

	rr := s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID+"/status", s.userToken, map[string]any{"status": "completed"})
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.makeRequest("GET", "/api/v1/tasks?status=completed", s.userToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var resp dto.TasksListResponse
	s.decode(rr, &resp)
	s.Require().Len(resp.Tasks, 1)
	s.Equal(task.ID, resp.Tasks[0].ID)

	rr = s.makeRequest("GET", "/api/v1/tasks?status=archived", s.userToken, nil)
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Equal("VALIDATION_ERROR", s.errorCode(rr))
}

func (s *HandlerTestSuite) TestGetTask_Errors() {
	task := s.createTask(s.userToken, map[string]any{"taskTitle": "private"})

	rr := s.makeRequest("GET", "/api/v1/tasks/not-a-uuid", s.userToken, nil)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.makeRequest("GET", "/api/v1/tasks/00000000-0000-0000-0000-0000000000ff", s.userToken, nil)
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal("TASK_NOT_FOUND", s.errorCode(rr))

	rr = s.makeRequest("GET", "/api/v1/tasks/"+task.ID, s.otherToken, nil)
	s.Equal(http.StatusForbidden, rr.Code)
	s.Equal("FORBIDDEN", s.errorCode(rr))
}

func (s *HandlerTestSuite) TestTransitionStatus() {
	task := s.createTask(s.userToken, map[string]any{"taskTitle": "move me"})

	rr := s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID+"/status", s.managerToken, map[string]any{
		"status": "in-progress",
		"note":   "picked up",
	})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	var updated dto.TaskResponse
	s.decode(rr, &updated)
	s.Equal("in-progress", updated.Status)
	s.Require().Len(updated.StatusHistory, 2)
	s.Equal("in-progress", updated.StatusHistory[1].Status)
	s.Equal(s.managerID, *updated.StatusHistory[1].ChangedBy)
	s.Equal("picked up", *updated.StatusHistory[1].Note)

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID+"/status", s.userToken, map[string]any{"status": "in-progress"})
	s.Require().Equal(http.StatusOK, rr.Code)
	s.decode(rr, &updated)
	s.Require().Len(updated.StatusHistory, 3)
	s.Equal("Status changed to in-progress", *updated.StatusHistory[2].Note)

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID+"/status", s.userToken, map[string]any{"status": "done"})
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Equal("INVALID_STATE", s.errorCode(rr))

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID+"/status", s.otherToken, map[string]any{"status": "done"})
	s.Equal(http.StatusForbidden, rr.Code)
}

func (s *HandlerTestSuite) TestUpdateTask() {
	task := s.createTask(s.managerToken, map[string]any{
		"taskTitle": "draft",
		"dueDate":   "2030-01-01T12:00:00Z",
	})

	rr := s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID, s.managerToken, map[string]any{
		"taskTitle": "final",
		"dueDate":   nil,
		"userId":    s.userID,
		"status":    "in-progress",
	})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	var updated dto.TaskResponse
	s.decode(rr, &updated)
	s.Equal("final", updated.TaskTitle)
	s.Nil(updated.DueDate)
	s.Equal(s.userID, updated.OwnerID)
	s.Equal("in-progress", updated.Status)
	s.Len(updated.StatusHistory, 2)

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID, s.managerToken, map[string]any{"taskTitle": nil})
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Equal("VALIDATION_ERROR", s.errorCode(rr))

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID, s.managerToken, map[string]any{})
	s.Equal(http.StatusUnprocessableEntity, rr.Code)

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID, s.userToken, map[string]any{"userId": s.otherID})
	s.Equal(http.StatusForbidden, rr.Code)
}

func (s *HandlerTestSuite) TestProjects() {
	rr := s.makeRequest("POST", "/api/v1/projects", s.userToken, map[string]string{"name": "Apollo"})
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.makeRequest("POST", "/api/v1/projects", s.managerToken, map[string]string{"name": "Apollo"})
	s.Require().Equal(http.StatusCreated, rr.Code)
	var project dto.ProjectResponse
	s.decode(rr, &project)
	s.Equal("Apollo", project.Name)

	task := s.createTask(s.userToken, map[string]any{"taskTitle": "in project", "projectId": project.ID})
	s.Require().NotNil(task.ProjectID)
	s.Equal(project.ID, *task.ProjectID)

	rr = s.makeRequest("PATCH", "/api/v1/tasks/"+task.ID, s.userToken, map[string]any{"projectId": nil})
	s.Require().Equal(http.StatusOK, rr.Code)
	var updated dto.TaskResponse
	s.decode(rr, &updated)
	s.Nil(updated.ProjectID)

	rr = s.makeRequest("GET", "/api/v1/projects", s.userToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var list dto.ProjectsListResponse
	s.decode(rr, &list)
	s.Len(list.Projects, 1)
}

func (s *HandlerTestSuite) TestDeleteTask() {
	task := s.createTask(s.userToken, map[string]any{"taskTitle": "temporary"})

	rr := s.makeRequest("DELETE", "/api/v1/tasks/"+task.ID, s.otherToken, nil)
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.makeRequest("DELETE", "/api/v1/tasks/"+task.ID, s.managerToken, nil)
	s.Equal(http.StatusNoContent, rr.Code)

	rr = s.makeRequest("GET", "/api/v1/tasks/"+task.ID, s.userToken, nil)
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.makeRequest("GET", "/api/v1/deletions", s.managerToken, nil)
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.makeRequest("GET", "/api/v1/deletions", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var resp dto.TaskDeletionsListResponse
	s.decode(rr, &resp)
	s.Require().Len(resp.Deletions, 1)
	s.Equal(task.ID, resp.Deletions[0].TaskID)
	s.Equal(s.managerID, resp.Deletions[0].DeletedBy)
	s.Equal(1, resp.Deletions[0].HistoryLength)
}

func (s *HandlerTestSuite) TestStats() {
	s.createTask(s.userToken, map[string]any{"taskTitle": "late", "dueDate": "2001-01-01"})
	s.createTask(s.userToken, map[string]any{"taskTitle": "fine"})

	rr := s.makeRequest("GET", "/api/v1/stats", s.managerToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)

	var stats dto.StatsResponse
	s.decode(rr, &stats)
	s.Equal(2, stats.Total)
	s.Equal(2, stats.ByStatus["pending"])
	s.Equal(0, stats.ByStatus["completed"])
	s.Equal(1, stats.Overdue)
}

func (s *HandlerTestSuite) TestListUsers() {
	rr := s.makeRequest("GET", "/api/v1/users", s.managerToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var resp dto.UsersListResponse
	s.decode(rr, &resp)
	s.Len(resp.Users, 2)

	rr = s.makeRequest("GET", "/api/v1/users", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.decode(rr, &resp)
	s.Len(resp.Users, 4)
}
