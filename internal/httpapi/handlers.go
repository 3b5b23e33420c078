package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"outreach-platform/internal/audit"
	"outreach-platform/internal/auth"
	"outreach-platform/internal/circuit"
	"outreach-platform/internal/engagement"
	"outreach-platform/internal/maintenance"
	"outreach-platform/internal/policy"
	"outreach-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Policy      *policy.Facade
	Circuits    *circuit.Registry
	Engagement  *engagement.Store
	Maintenance *maintenance.Runner
	Reports     *reporting.Service
	Audit       *audit.Service
}

/* ===================== auth ===================== */

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

/* ===================== policy ===================== */

type decisionRequest struct {
	IdentityID  string `json:"identity_id"`
	RecipientID string `json:"recipient_id"`
}

type decisionResponse struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
}

func (h Handlers) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := h.Policy.MayContact(c.Request.Context(), req.IdentityID, req.RecipientID)
	if err != nil {
		if errors.Is(err, policy.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity_id, recipient_id required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "decision failed"})
		return
	}
	c.JSON(http.StatusOK, decisionResponse{
		Allowed:           d.Allowed,
		Reason:            string(d.Reason),
		RetryAfterSeconds: int64(d.RetryAfter / time.Second),
	})
}

type attemptRequest struct {
	IdentityID  string `json:"identity_id"`
	RecipientID string `json:"recipient_id"`
	Actor       string `json:"actor,omitempty"`
}

func (h Handlers) RecordAttempt(c *gin.Context) {
	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.Policy.RecordAttempt(c.Request.Context(), req.IdentityID, req.RecipientID, req.Actor)
	if err != nil {
		if errors.Is(err, policy.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity_id, recipient_id required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "attempt booking failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

/* ===================== identity circuits ===================== */

func (h Handlers) ReportIdentitySuccess(c *gin.Context) {
	identityID := c.Param("identity_id")
	if identityID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity_id required"})
		return
	}
	h.Circuits.RegisterSuccess(identityID)
	c.Status(http.StatusNoContent)
}

type failureRequest struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (h Handlers) ReportIdentityFailure(c *gin.Context) {
	identityID := c.Param("identity_id")
	if identityID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity_id required"})
		return
	}
	var req failureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.Circuits.RegisterFailure(identityID, req.ErrorCode, req.ErrorMessage)
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListIdentities(c *gin.Context) {
	out, err := h.Reports.CircuitSummary()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "circuit summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ListOpenIdentities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"open_identities": h.Circuits.OpenIdentities()})
}

func (h Handlers) ResetIdentity(c *gin.Context) {
	identityID := c.Param("identity_id")
	if identityID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity_id required"})
		return
	}
	if !h.Circuits.Reset(identityID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown identity"})
		return
	}
	h.auditCircuitReset(c, identityID, "manual reset")
	c.Status(http.StatusNoContent)
}

func (h Handlers) ResetAllIdentities(c *gin.Context) {
	n := h.Circuits.ResetAll()
	h.auditCircuitReset(c, "", "manual reset of all circuits")
	c.JSON(http.StatusOK, gin.H{"reset": n})
}

func (h Handlers) auditCircuitReset(c *gin.Context, identityID, message string) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	// Best-effort: the reset already happened.
	_ = h.Audit.LogCircuitReset(c.Request.Context(), userID, role, identityID, message)
}

/* ===================== engagement ===================== */

func (h Handlers) GetEngagement(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	s, err := h.Engagement.Load(c.Request.Context(), recipientID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recipient_id required"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// engagementUpdateRequest mirrors engagement.Updates with string enums,
// validated strictly: unknown enum values are a client error here, unlike
// the lenient decode on the storage read path.
type engagementUpdateRequest struct {
	PermissionState *string    `json:"permission_state"`
	CoolingOffUntil *time.Time `json:"cooling_off_until"`

	Temperature *float64 `json:"temperature"`

	RiskTolerance *string `json:"risk_tolerance"`

	LastInboundAt *time.Time `json:"last_inbound_at"`

	ActiveObjection     *string    `json:"active_objection"`
	ObjectionSeverity   *string    `json:"objection_severity"`
	ObjectionDetectedAt *time.Time `json:"objection_detected_at"`

	PendingAction *string `json:"pending_action"`
	CurrentIntent *string `json:"current_intent"`

	LifecycleStage *string `json:"lifecycle_stage"`
	Reactivate     bool    `json:"reactivate"`

	Flags map[string]bool `json:"flags"`
}

func (h Handlers) UpdateEngagement(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	if recipientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recipient_id required"})
		return
	}
	var req engagementUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := req.toUpdates()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Engagement.SaveUpdates(c.Request.Context(), recipientID, u); err != nil {
		status := http.StatusInternalServerError
		msg := "update failed"
		switch {
		case errors.Is(err, engagement.ErrOptedOutTerminal):
			status, msg = http.StatusConflict, "recipient has opted out"
		case errors.Is(err, engagement.ErrLifecycleBackward):
			status, msg = http.StatusConflict, "lifecycle stage cannot move backward without reactivate"
		case errors.Is(err, engagement.ErrInvalidUpdate), errors.Is(err, engagement.ErrInvalidArgument):
			status, msg = http.StatusBadRequest, "invalid update"
		}
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}

	s, err := h.Engagement.Load(c.Request.Context(), recipientID)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (r engagementUpdateRequest) toUpdates() (engagement.Updates, error) {
	u := engagement.Updates{
		CoolingOffUntil:     r.CoolingOffUntil,
		LastInboundAt:       r.LastInboundAt,
		ActiveObjection:     r.ActiveObjection,
		ObjectionDetectedAt: r.ObjectionDetectedAt,
		PendingAction:       r.PendingAction,
		CurrentIntent:       r.CurrentIntent,
		Reactivate:          r.Reactivate,
		Flags:               r.Flags,
	}

	if r.PermissionState != nil {
		p := engagement.ParsePermissionState(*r.PermissionState)
		if string(p) != *r.PermissionState {
			return engagement.Updates{}, errors.New("unknown permission_state " + strconv.Quote(*r.PermissionState))
		}
		u.PermissionState = &p
	}
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 1 {
			return engagement.Updates{}, errors.New("temperature must be within [0,1]")
		}
		u.Temperature = r.Temperature
		band := engagement.BandFor(*r.Temperature)
		u.TemperatureBand = &band
	}
	if r.RiskTolerance != nil {
		v := engagement.ParseRiskTolerance(*r.RiskTolerance)
		if string(v) != *r.RiskTolerance {
			return engagement.Updates{}, errors.New("unknown risk_tolerance " + strconv.Quote(*r.RiskTolerance))
		}
		u.RiskTolerance = &v
	}
	if r.ObjectionSeverity != nil {
		v := engagement.ParseObjectionSeverity(*r.ObjectionSeverity)
		if string(v) != *r.ObjectionSeverity {
			return engagement.Updates{}, errors.New("unknown objection_severity " + strconv.Quote(*r.ObjectionSeverity))
		}
		u.ObjectionSeverity = &v
	}
	if r.LifecycleStage != nil {
		v := engagement.ParseLifecycleStage(*r.LifecycleStage)
		if string(v) != *r.LifecycleStage {
			return engagement.Updates{}, errors.New("unknown lifecycle_stage " + strconv.Quote(*r.LifecycleStage))
		}
		u.LifecycleStage = &v
	}
	return u, nil
}

func (h Handlers) ResolveObjection(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	if recipientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recipient_id required"})
		return
	}
	if err := h.Engagement.ResolveObjection(c.Request.Context(), recipientID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

/* ===================== maintenance ===================== */

func (h Handlers) RunDailyMaintenance(c *gin.Context) {
	c.JSON(http.StatusOK, h.Maintenance.RunDaily(c.Request.Context()))
}

func (h Handlers) RunWeeklyMaintenance(c *gin.Context) {
	c.JSON(http.StatusOK, h.Maintenance.RunWeekly(c.Request.Context()))
}

func (h Handlers) RunDecay(c *gin.Context) {
	n, err := h.Maintenance.DecayAllTemperatures(c.Request.Context(), 0)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "decay failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decayed": n})
}

func (h Handlers) RunCoolingOffExpiry(c *gin.Context) {
	n, err := h.Maintenance.ExpireCoolingOff(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "expiry failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cooling_off_expired": n})
}

/* ===================== reports ===================== */

func (h Handlers) EngagementReport(c *gin.Context) {
	out, err := h.Reports.EngagementSummary(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}
