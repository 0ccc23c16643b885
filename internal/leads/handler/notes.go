package handler

import (
	"net/http"

	"dealflow_backend/internal/leads/notes"
	"dealflow_backend/internal/leads/transport"
	"dealflow_backend/platform/httpkit"
	"dealflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// NotesHandler handles HTTP requests for lead notes.
// This is separate from the main Handler to allow independent wiring.
type NotesHandler struct {
	svc *notes.Service
	val *validator.Validator
}

// NewNotesHandler creates a new notes handler.
func NewNotesHandler(svc *notes.Service, val *validator.Validator) *NotesHandler {
	return &NotesHandler{svc: svc, val: val}
}

func (h *NotesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/:id/notes", h.UpdateNotes)
	rg.GET("/:id/activity", h.ListNotes)
	rg.POST("/:id/activity", h.AddNote)
}

func (h *NotesHandler) UpdateNotes(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if req.ExpectedNotesVersion == nil {
		if v, ok := ifMatchVersion(c.GetHeader("If-Match")); ok {
			req.ExpectedNotesVersion = &v
		}
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	resp, err := h.svc.UpdateNotes(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *NotesHandler) ListNotes(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	notesList, err := h.svc.List(c.Request.Context(), identity.TenantID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, notesList)
}

func (h *NotesHandler) AddNote(c *gin.Context) {
	identity, id, ok := leadIdentity(c)
	if !ok {
		return
	}

	var req transport.CreateLeadNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	created, err := h.svc.Add(c.Request.Context(), identity.TenantID(), id, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, created)
}
