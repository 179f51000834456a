package api

import (
	"dealflow/server/internal/assistant"
	"github.com/gin-gonic/gin"
)

func (h *Handler) GenerateEmail(c *gin.Context) {
	var in assistant.GenerateEmailInput
	if !h.bind(c, &in) {
		return
	}

	draft, err := h.assistant.GenerateEmail(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, draft)
}

func (h *Handler) Chat(c *gin.Context) {
	var in assistant.ChatInput
	if !h.bind(c, &in) {
		return
	}

	reply, err := h.assistant.Chat(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, reply)
}

func (h *Handler) MarketReport(c *gin.Context) {
	var in assistant.MarketReportInput
	if !h.bind(c, &in) {
		return
	}

	report, err := h.assistant.MarketReport(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, report)
}

func (h *Handler) AnalyzeLead(c *gin.Context) {
	analysis, err := h.assistant.AnalyzeLead(c.Request.Context(), callerFrom(c), c.Param("leadId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, analysis)
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.crm.Dashboard(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, d)
}

func (h *Handler) LeadMetrics(c *gin.Context) {
	m, err := h.crm.LeadMetrics(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, m)
}

func (h *Handler) TransactionMetrics(c *gin.Context) {
	m, err := h.crm.TransactionMetrics(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, m)
}
