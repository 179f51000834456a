package api

import (
	"dealflow/server/internal/crm"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListLeads(c *gin.Context) {
	var f crm.LeadFilter
	if !h.bindQuery(c, &f) {
		return
	}

	page, err := h.crm.ListLeads(c.Request.Context(), callerFrom(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	paged(c, page.Items, metaFor(page))
}

func (h *Handler) CreateLead(c *gin.Context) {
	var in crm.CreateLeadInput
	if !h.bind(c, &in) {
		return
	}

	lead, err := h.crm.CreateLead(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, lead)
}

func (h *Handler) GetLead(c *gin.Context) {
	lead, err := h.crm.GetLead(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, lead)
}

func (h *Handler) UpdateLead(c *gin.Context) {
	var in crm.UpdateLeadInput
	if !h.bind(c, &in) {
		return
	}

	lead, err := h.crm.UpdateLead(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, lead)
}

func (h *Handler) DeleteLead(c *gin.Context) {
	if err := h.crm.DeleteLead(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Lead deleted"})
}

func (h *Handler) ScoreLead(c *gin.Context) {
	lead, err := h.crm.RescoreLead(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"id": lead.ID, "score": lead.Score})
}

func (h *Handler) ConvertLead(c *gin.Context) {
	var in crm.ConvertLeadInput
	if !h.bind(c, &in) {
		return
	}

	transaction, err := h.crm.ConvertLead(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, transaction)
}

func metaFor[T any](p crm.Page[T]) Meta {
	return Meta{Total: p.Total, Page: p.Page, Limit: p.Limit, TotalPages: p.TotalPages()}
}
