package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outreach-platform/internal/circuit"
	"outreach-platform/internal/engagement"
	"outreach-platform/internal/policy"
	"outreach-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	circuits := circuit.NewRegistry(circuit.Options{FailureThreshold: 3, ResetTimeout: 300 * time.Second})
	states := engagement.NewStore(engagement.NewMemoryRepository(), nil, nil)
	h := Handlers{
		Policy:     policy.NewFacade(circuits, states, policy.Gaps{}, nil),
		Circuits:   circuits,
		Engagement: states,
		Reports:    reporting.NewService(reporting.NewMemoryRepo(), circuits),
	}

	r := gin.New()
	r.POST("/v1/policy/decisions", h.Decide)
	r.POST("/v1/identities/:identity_id/failure", h.ReportIdentityFailure)
	r.GET("/v1/recipients/:recipient_id/engagement", h.GetEngagement)
	r.PATCH("/v1/recipients/:recipient_id/engagement", h.UpdateEngagement)
	return r, h
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDecide_AllowsUntouchedRecipient(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/v1/policy/decisions", `{"identity_id":"id-1","recipient_id":"r-1"}`)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp decisionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Allowed || resp.Reason != "allowed" {
		t.Fatalf("unexpected decision: %+v", resp)
	}
}

func TestDecide_ReflectsTrippedCircuit(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodPost, "/v1/identities/id-1/failure", `{"error_code":503,"error_message":"unreachable"}`)
		if w.Code != 204 {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	}

	w := do(r, http.MethodPost, "/v1/policy/decisions", `{"identity_id":"id-1","recipient_id":"r-1"}`)
	var resp decisionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Allowed || resp.Reason != "identity_unavailable" {
		t.Fatalf("unexpected decision: %+v", resp)
	}
}

func TestDecide_MissingFields(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(r, http.MethodPost, "/v1/policy/decisions", `{"identity_id":"id-1"}`); w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetEngagement_ReturnsDefaultRecord(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/v1/recipients/r-1/engagement", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var s engagement.State
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.RecipientID != "r-1" || s.Temperature != 0.5 || s.PermissionState != engagement.PermissionNone {
		t.Fatalf("unexpected default record: %+v", s)
	}
}

func TestUpdateEngagement_RejectsUnknownEnum(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPatch, "/v1/recipients/r-1/engagement", `{"permission_state":"banned"}`)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateEngagement_OptedOutConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(r, http.MethodPatch, "/v1/recipients/r-1/engagement", `{"permission_state":"opted_out"}`); w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPatch, "/v1/recipients/r-1/engagement", `{"permission_state":"active"}`); w.Code != 409 {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateEngagement_TemperatureDerivesBand(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPatch, "/v1/recipients/r-1/engagement", `{"temperature":0.9}`)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var s engagement.State
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.TemperatureBand != engagement.BandHot {
		t.Fatalf("expected hot band, got %s", s.TemperatureBand)
	}
}
