package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealflow_backend/internal/leads/consolidation"
	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/management"
	"dealflow_backend/internal/leads/transport"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/httpkit"
	"dealflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	mgmt   *management.Service
	ingest *consolidation.Service
	val    *validator.Validator
}

const msgInvalidRequest = "invalid request"

var auditKinds = map[string]bool{
	domain.SnapshotARV:          true,
	domain.SnapshotRehab:        true,
	domain.SnapshotRent:         true,
	domain.SnapshotNeighborhood: true,
	domain.SnapshotSummary:      true,
}

func New(mgmt *management.Service, ingest *consolidation.Service, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, ingest: ingest, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/queue", h.GetQueue)
	rg.POST("/ingest", h.Ingest)
	rg.GET("/:id", h.GetLead)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/evaluation", h.UpdateEvaluation)
	rg.GET("/:id/valuations", h.GetValuations)
	rg.POST("/:id/evaluations", h.RunEvaluation)
	rg.GET("/:id/evaluations", h.GetEvaluationHistory)
	rg.GET("/:id/evaluations/status", h.EvaluationStatus)
	rg.DELETE("/:id/evaluations/:tier", h.CancelEvaluation)
	rg.GET("/:id/audit/:evaluationId/:kind", h.AuditLink)
	rg.PUT("/:id/follow-up", h.ScheduleFollowUp)
	rg.DELETE("/:id/follow-up", h.CancelFollowUp)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.POST("/:id/contact", h.RecordContact)
	rg.POST("/:id/archive", h.Archive)
	rg.POST("/:id/unarchive", h.Unarchive)
}

func (h *Handler) GetQueue(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.QueueRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	resp, err := h.mgmt.GetQueue(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Ingest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.IngestLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, domain.ErrNestedMetadata) || errors.Is(err, domain.ErrMetadataInvalid) {
			httpkit.HandleError(c, apperr.InvalidField("metadata", err.Error()))
			return
		}
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}
	if httpkit.HandleError(c, h.checkMetadata(req.Metadata)) {
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), identity.TenantID(), consolidation.Request{
		Candidate: consolidation.Candidate{
			Address:       req.Address,
			ListingPrice:  req.ListingPrice,
			ContactName:   req.ContactName,
			ContactPhone:  req.ContactPhone,
			ContactEmail:  req.ContactEmail,
			Units:         req.Units,
			SquareFootage: req.SquareFootage,
			Latitude:      req.Latitude,
			Longitude:     req.Longitude,
			Tags:          req.Tags,
			Source:        req.Source,
			Metadata:      req.Metadata,
		},
		Tier:             req.Tier,
		SendFirstMessage: req.SendFirstMessage,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.IngestLeadResponse{
		Lead:            management.ToLeadResponse(result.Lead, time.Now().UTC()),
		WasConsolidated: result.WasConsolidated,
	}
	if result.Consolidation != nil {
		resp.Consolidation = result.Consolidation
	}
	if result.EvaluationQueued {
		resp.Evaluation = &transport.EvaluationQueuedResponse{Tier: result.EvaluationTier, Status: string(domain.TierQueued)}
	}

	status := http.StatusOK
	if !result.WasConsolidated {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, resp)
}

// checkMetadata runs the struct rules of the typed shapes, which the request
// tag skips, and the size limits of the generic fallback.
func (h *Handler) checkMetadata(m domain.Metadata) error {
	switch {
	case m.Kind == domain.MetadataListing && m.Listing != nil:
		return h.val.Check(m.Listing)
	case m.Kind == domain.MetadataImport && m.Import != nil:
		return h.val.Check(m.Import)
	}
	if problems := m.Problems(); len(problems) > 0 {
		return apperr.InvalidField("metadata", strings.Join(problems, "; "))
	}
	return nil
}

func (h *Handler) GetLead(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	resp, err := h.mgmt.GetLead(c.Request.Context(), identity.TenantID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) UpdateEvaluation(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.UpdateEvaluationRequest
	if !h.bindVersioned(c, &req, &req.ExpectedVersion) {
		return
	}

	resp, err := h.mgmt.UpdateEvaluation(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetValuations(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.ListValuationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	resp, err := h.mgmt.GetValuations(c.Request.Context(), identity.TenantID(), id, req.Kind)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) RunEvaluation(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.RunEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	resp, err := h.mgmt.RunEvaluation(c.Request.Context(), identity.TenantID(), id, req.Tier)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, resp)
}

func (h *Handler) CancelEvaluation(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	tier := domain.EvaluationTier(c.Param("tier"))
	if !tier.Valid() {
		httpkit.HandleError(c, apperr.InvalidField("tier", "must be one of "+domain.EvaluationTierOneOf))
		return
	}

	resp, err := h.mgmt.CancelEvaluation(c.Request.Context(), identity.TenantID(), id, tier)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) AuditLink(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}
	evaluationID, err := uuid.Parse(c.Param("evaluationId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	kind := c.Param("kind")
	if !auditKinds[kind] {
		httpkit.HandleError(c, apperr.InvalidField("kind", "unknown audit kind"))
		return
	}

	resp, err := h.mgmt.AuditLink(c.Request.Context(), identity.TenantID(), id, evaluationID, kind)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) EvaluationStatus(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	resp, err := h.mgmt.EvaluationStatus(c.Request.Context(), identity.TenantID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetEvaluationHistory(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	resp, err := h.mgmt.GetEvaluationHistory(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ScheduleFollowUp(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.ScheduleFollowUpRequest
	if !h.bindVersioned(c, &req, &req.ExpectedVersion) {
		return
	}

	resp, err := h.mgmt.ScheduleFollowUp(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) CancelFollowUp(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.VersionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.checkVersioned(c, &req, &req.ExpectedVersion) {
		return
	}

	resp, err := h.mgmt.CancelFollowUp(c.Request.Context(), identity.TenantID(), id, *req.ExpectedVersion)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if !h.bindVersioned(c, &req, &req.ExpectedVersion) {
		return
	}

	resp, err := h.mgmt.UpdateStatus(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) RecordContact(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.RecordContactRequest
	if !h.bindVersioned(c, &req, &req.ExpectedVersion) {
		return
	}

	resp, err := h.mgmt.RecordContact(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

func (h *Handler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *Handler) setArchived(c *gin.Context, archived bool) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.VersionRequest
	if !h.bindVersioned(c, &req, &req.ExpectedVersion) {
		return
	}

	resp, err := h.mgmt.SetArchived(c.Request.Context(), identity.TenantID(), id, *req.ExpectedVersion, archived)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Delete(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.mgmt.Delete(c.Request.Context(), identity.TenantID(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"message": "lead deleted"})
}

// leadIdentity resolves the caller's identity and the :id path parameter.
func leadIdentity(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, uuid.Nil, false
	}
	return identity, id, true
}

// bindVersioned binds an optional JSON body into req, falls back to the
// If-Match header for the expected version and validates the result.
func (h *Handler) bindVersioned(c *gin.Context, req any, version **int) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return false
		}
	}
	return h.checkVersioned(c, req, version)
}

func (h *Handler) checkVersioned(c *gin.Context, req any, version **int) bool {
	if *version == nil {
		if v, ok := ifMatchVersion(c.GetHeader("If-Match")); ok {
			*version = &v
		}
	}
	return !httpkit.HandleError(c, h.val.Check(req))
}

// ifMatchVersion parses an If-Match value such as `3`, `"3"` or `W/"3"`.
func ifMatchVersion(header string) (int, bool) {
	value := strings.TrimSpace(header)
	value = strings.TrimPrefix(value, "W/")
	value = strings.Trim(value, `"`)
	if value == "" {
		return 0, false
	}
	v, err := strconv.Atoi(value)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
