//go:build api

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultAPIKey  = "test-api-key-for-development-only-32chars"
)

// APITestSuite is the test suite for real API endpoint testing
type APITestSuite struct {
	suite.Suite
	baseURL string
	apiKey  string
	client  *http.Client

	// Test data IDs for cleanup
	createdTeamIDs []uint
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Meta    struct {
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	} `json:"meta"`
}

type ingestResult struct {
	Success     bool   `json:"success"`
	ThreadID    uint   `json:"threadId"`
	MessageID   uint   `json:"messageId"`
	IsNewThread *bool  `json:"isNewThread"`
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason"`
	Code        string `json:"code"`
}

func TestAPIEndpoints(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupSuite() {
	s.baseURL = os.Getenv("API_BASE_URL")
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}

	s.apiKey = os.Getenv("API_KEY")
	if s.apiKey == "" {
		s.apiKey = defaultAPIKey
	}

	s.client = &http.Client{
		Timeout: 30 * time.Second,
	}

	// Verify server is running
	resp, err := s.client.Get(s.baseURL + "/health")
	require.NoError(s.T(), err, "Backend server must be running on %s", s.baseURL)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, "Health check should return 200")
}

func (s *APITestSuite) TearDownSuite() {
	// Deleting a team cascades to its threads and messages
	for _, id := range s.createdTeamIDs {
		s.deleteResource(fmt.Sprintf("/api/teams/%d", id))
	}
}

// Helper methods
func (s *APITestSuite) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return s.client.Do(req)
}

func (s *APITestSuite) deleteResource(path string) {
	resp, err := s.doRequest(http.MethodDelete, path, nil)
	if err == nil {
		resp.Body.Close()
	}
}

func (s *APITestSuite) parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// uniqueDomain keeps runs against a shared server from colliding
func uniqueDomain(prefix string) string {
	return fmt.Sprintf("%s-%d.test", prefix, time.Now().UnixNano())
}

func (s *APITestSuite) createTeam(domain string) uint {
	resp, err := s.doRequest(http.MethodPost, "/api/teams", map[string]interface{}{
		"name":   "API Test Team",
		"domain": domain,
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var result envelope
	require.NoError(s.T(), s.parseResponse(resp, &result))
	var team struct {
		ID uint `json:"id"`
	}
	require.NoError(s.T(), json.Unmarshal(result.Data, &team))
	s.createdTeamIDs = append(s.createdTeamIDs, team.ID)
	return team.ID
}

func (s *APITestSuite) ingest(payload map[string]interface{}) (int, ingestResult) {
	resp, err := s.doRequest(http.MethodPost, "/api/inbound", payload)
	require.NoError(s.T(), err)
	var result ingestResult
	require.NoError(s.T(), s.parseResponse(resp, &result))
	return resp.StatusCode, result
}

func inbound(domain, messageID string) map[string]interface{} {
	return map[string]interface{}{
		"from":       "Jane Customer <jane@acme.com>",
		"to":         []string{"support@" + domain},
		"subject":    "Order problem",
		"message_id": messageID,
		"text":       "My order has not arrived.",
	}
}

// ==================== Health Tests ====================

func (s *APITestSuite) TestHealth_ReturnsHealthy() {
	resp, err := s.client.Get(s.baseURL + "/health")
	require.NoError(s.T(), err)

	var result map[string]interface{}
	require.NoError(s.T(), s.parseResponse(resp, &result))

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), "healthy", result["status"])
}

func (s *APITestSuite) TestReady_ReturnsReady() {
	resp, err := s.client.Get(s.baseURL + "/ready")
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
}

// ==================== Team Tests ====================

func (s *APITestSuite) TestTeam_CRUD_Flow() {
	domain := uniqueDomain("crud")
	id := s.createTeam(domain)

	resp, err := s.doRequest(http.MethodGet, fmt.Sprintf("/api/teams/%d", id), nil)
	require.NoError(s.T(), err)
	var got envelope
	require.NoError(s.T(), s.parseResponse(resp, &got))
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(s.T(), string(got.Data), domain)

	resp, err = s.doRequest(http.MethodPut, fmt.Sprintf("/api/teams/%d", id), map[string]interface{}{"name": "Renamed"})
	require.NoError(s.T(), err)
	var updated envelope
	require.NoError(s.T(), s.parseResponse(resp, &updated))
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(s.T(), string(updated.Data), "Renamed")

	resp, err = s.doRequest(http.MethodDelete, fmt.Sprintf("/api/teams/%d", id), nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusNoContent, resp.StatusCode)

	resp, err = s.doRequest(http.MethodGet, fmt.Sprintf("/api/teams/%d", id), nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestTeam_Create_InvalidDomain_Returns400() {
	resp, err := s.doRequest(http.MethodPost, "/api/teams", map[string]interface{}{
		"name":   "Broken",
		"domain": "not a domain",
	})
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestTeam_Create_Duplicate_Returns409() {
	domain := uniqueDomain("dup")
	s.createTeam(domain)

	resp, err := s.doRequest(http.MethodPost, "/api/teams", map[string]interface{}{
		"name":   "Again",
		"domain": domain,
	})
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusConflict, resp.StatusCode)
}

// ==================== Ingestion Tests ====================

func (s *APITestSuite) TestInbound_ThreadsReplies() {
	domain := uniqueDomain("thread")
	teamID := s.createTeam(domain)
	root := fmt.Sprintf("<root-%d@acme.com>", time.Now().UnixNano())

	status, first := s.ingest(inbound(domain, root))
	require.Equal(s.T(), http.StatusOK, status)
	require.True(s.T(), first.Success)
	require.NotNil(s.T(), first.IsNewThread)
	assert.True(s.T(), *first.IsNewThread)

	reply := inbound(domain, fmt.Sprintf("<reply-%d@acme.com>", time.Now().UnixNano()))
	reply["in_reply_to"] = root
	status, second := s.ingest(reply)
	require.Equal(s.T(), http.StatusOK, status)
	assert.Equal(s.T(), first.ThreadID, second.ThreadID)

	resp, err := s.doRequest(http.MethodGet, fmt.Sprintf("/api/teams/%d/threads?limit=5", teamID), nil)
	require.NoError(s.T(), err)
	var list envelope
	require.NoError(s.T(), s.parseResponse(resp, &list))
	assert.Equal(s.T(), int64(1), list.Meta.Total)
	assert.Equal(s.T(), 5, list.Meta.Limit)
}

func (s *APITestSuite) TestInbound_Redelivery_IsSkipped() {
	domain := uniqueDomain("redeliver")
	s.createTeam(domain)
	payload := inbound(domain, fmt.Sprintf("<dup-%d@acme.com>", time.Now().UnixNano()))

	_, first := s.ingest(payload)
	status, second := s.ingest(payload)

	// the server may run either duplicate policy
	if status == http.StatusConflict {
		assert.Equal(s.T(), "DUPLICATE_ENTRY", second.Code)
		return
	}
	assert.Equal(s.T(), http.StatusOK, status)
	assert.True(s.T(), second.Skipped)
	assert.Equal(s.T(), first.MessageID, second.MessageID)
}

func (s *APITestSuite) TestInbound_UnknownDomain_NotRouted() {
	status, result := s.ingest(inbound(uniqueDomain("nobody"), "<lost@acme.com>"))

	assert.Equal(s.T(), http.StatusOK, status)
	assert.False(s.T(), result.Success)
	assert.Contains(s.T(), result.Reason, "No team configured for domain")
}

func (s *APITestSuite) TestInbound_MissingSender_Returns400() {
	payload := inbound(uniqueDomain("bad"), "<bad@acme.com>")
	payload["from"] = ""

	status, result := s.ingest(payload)

	assert.Equal(s.T(), http.StatusBadRequest, status)
	assert.Equal(s.T(), "PARSE_ERROR", result.Code)
}

func (s *APITestSuite) TestInboundBatch_ReportsSummary() {
	domain := uniqueDomain("batch")
	s.createTeam(domain)
	stamp := time.Now().UnixNano()

	resp, err := s.doRequest(http.MethodPost, "/api/inbound/batch", map[string]interface{}{
		"emails": []map[string]interface{}{
			inbound(domain, fmt.Sprintf("<b1-%d@acme.com>", stamp)),
			inbound(domain, fmt.Sprintf("<b2-%d@acme.com>", stamp)),
			inbound(uniqueDomain("nobody"), fmt.Sprintf("<b3-%d@acme.com>", stamp)),
		},
	})
	require.NoError(s.T(), err)

	var result struct {
		Summary struct {
			TotalEmails int `json:"totalEmails"`
			Successful  int `json:"successful"`
			Failed      int `json:"failed"`
		} `json:"summary"`
	}
	require.NoError(s.T(), s.parseResponse(resp, &result))
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), 3, result.Summary.TotalEmails)
	assert.Equal(s.T(), 2, result.Summary.Successful)
	assert.Equal(s.T(), 1, result.Summary.Failed)
}

// ==================== Thread Tests ====================

func (s *APITestSuite) TestThread_UpdateStatus() {
	domain := uniqueDomain("status")
	s.createTeam(domain)
	_, result := s.ingest(inbound(domain, fmt.Sprintf("<status-%d@acme.com>", time.Now().UnixNano())))

	resp, err := s.doRequest(http.MethodPatch, fmt.Sprintf("/api/threads/%d/status", result.ThreadID), map[string]interface{}{"status": "archived"})
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	resp, err = s.doRequest(http.MethodPatch, fmt.Sprintf("/api/threads/%d/status", result.ThreadID), map[string]interface{}{"status": "spam"})
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestThread_Get_NotFound_Returns404() {
	resp, err := s.doRequest(http.MethodGet, "/api/threads/999999999", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

// ==================== Message & Attachment Tests ====================

func (s *APITestSuite) TestMessage_Get_NotFound_Returns404() {
	resp, err := s.doRequest(http.MethodGet, "/api/messages/999999999", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestAttachment_Download_NotFound_Returns404() {
	resp, err := s.doRequest(http.MethodGet, "/api/attachments/999999999/download", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestAttachment_List_MessageNotFound_Returns404() {
	resp, err := s.doRequest(http.MethodGet, "/api/messages/999999999/attachments", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

// ==================== Delivery Webhook ====================

func (s *APITestSuite) TestDeliveryWebhook_UnknownMessage_Acknowledged() {
	resp, err := s.doRequest(http.MethodPost, "/api/webhooks/delivery", map[string]interface{}{
		"message_id": "never-sent",
		"status":     "delivered",
	})
	require.NoError(s.T(), err)

	var result map[string]interface{}
	require.NoError(s.T(), s.parseResponse(resp, &result))
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), false, result["success"])
}

// ==================== Auth Tests ====================

func (s *APITestSuite) TestAuth_MissingAPIKey_Returns401() {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/api/teams", nil)
	require.NoError(s.T(), err)

	resp, err := s.client.Do(req)
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (s *APITestSuite) TestAuth_InvalidAPIKey_Returns401() {
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/api/inbound", bytes.NewBufferString("{}"))
	require.NoError(s.T(), err)
	req.Header.Set("Authorization", "Bearer invalid-key")

	resp, err := s.client.Do(req)
	require.NoError(s.T(), err)
	resp.Body.Close()

	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}
