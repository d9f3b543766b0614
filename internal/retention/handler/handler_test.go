package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodian/internal/category/registry"
	"custodian/internal/platform/logger"
	"custodian/internal/records"
	"custodian/internal/retention/service"
	"custodian/internal/retention/store"
	id "custodian/pkg/domain"
)

// RetentionHandlerSuite drives the policy endpoints over HTTP against a real
// service with in-memory stores.
type RetentionHandlerSuite struct {
	suite.Suite

	workspaceID id.WorkspaceID
	server      *httptest.Server
}

func TestRetentionHandlerSuite(t *testing.T) {
	suite.Run(t, new(RetentionHandlerSuite))
}

func (s *RetentionHandlerSuite) SetupTest() {
	s.workspaceID = id.WorkspaceID(uuid.New())

	log := logger.New()
	svc := service.NewService(store.New(), registry.NewDefault(records.NewInMemory(), nil), log)

	router := chi.NewRouter()
	New(svc, log).Register(router)
	s.server = httptest.NewServer(router)
}

func (s *RetentionHandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *RetentionHandlerSuite) post(path string, body any) *http.Response {
	encoded, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(encoded))
	s.Require().NoError(err)
	return resp
}

func (s *RetentionHandlerSuite) decode(resp *http.Response, into any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

func (s *RetentionHandlerSuite) TestCreateAndGetPolicy() {
	resp := s.post("/workspaces/"+s.workspaceID.String()+"/retention-policies", map[string]any{
		"dataCategory":  "posts",
		"retentionDays": 30,
		"action":        "delete",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created policyResponse
	s.decode(resp, &created)
	s.Equal("posts", created.DataCategory)
	s.Equal(30, created.RetentionDays)
	s.True(created.IsActive)
	s.NotEmpty(created.ID)

	getResp, err := http.Get(s.server.URL + "/workspaces/" + s.workspaceID.String() + "/retention-policies/" + created.ID)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, getResp.StatusCode)

	var fetched policyResponse
	s.decode(getResp, &fetched)
	s.Equal(created.ID, fetched.ID)
}

func (s *RetentionHandlerSuite) TestCreatePolicyValidation() {
	resp := s.post("/workspaces/"+s.workspaceID.String()+"/retention-policies", map[string]any{
		"dataCategory":  "posts",
		"retentionDays": 0,
		"action":        "delete",
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = s.post("/workspaces/"+s.workspaceID.String()+"/retention-policies", map[string]any{
		"dataCategory":  "documents",
		"retentionDays": 30,
		"action":        "delete",
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *RetentionHandlerSuite) TestGetUnknownPolicy() {
	resp, err := http.Get(s.server.URL + "/workspaces/" + s.workspaceID.String() + "/retention-policies/" + uuid.NewString())
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RetentionHandlerSuite) TestBadWorkspaceID() {
	resp, err := http.Get(s.server.URL + "/workspaces/not-a-uuid/retention-policies")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RetentionHandlerSuite) TestListPolicies() {
	resp := s.post("/workspaces/"+s.workspaceID.String()+"/retention-policies", map[string]any{
		"dataCategory":  "media",
		"retentionDays": 90,
		"action":        "archive",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	listResp, err := http.Get(s.server.URL + "/workspaces/" + s.workspaceID.String() + "/retention-policies")
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, listResp.StatusCode)

	var listed struct {
		Policies []policyResponse `json:"policies"`
	}
	s.decode(listResp, &listed)
	s.Require().Len(listed.Policies, 1)
	s.Equal("archive", listed.Policies[0].Action)
}

func (s *RetentionHandlerSuite) TestManualRun() {
	resp := s.post("/admin/retention/run", map[string]any{})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var summary struct {
		Executed int `json:"executed"`
		Failed   int `json:"failed"`
	}
	s.decode(resp, &summary)
	s.Equal(0, summary.Executed)
}
