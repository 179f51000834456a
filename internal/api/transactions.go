package api

import (
	"dealflow/server/internal/crm"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTransactions(c *gin.Context) {
	var f crm.TransactionFilter
	if !h.bindQuery(c, &f) {
		return
	}

	page, err := h.crm.ListTransactions(c.Request.Context(), callerFrom(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	paged(c, page.Items, metaFor(page))
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var in crm.CreateTransactionInput
	if !h.bind(c, &in) {
		return
	}

	t, err := h.crm.CreateTransaction(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, t)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	t, err := h.crm.GetTransaction(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, t)
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	var in crm.UpdateTransactionInput
	if !h.bind(c, &in) {
		return
	}

	t, err := h.crm.UpdateTransaction(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, t)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	if err := h.crm.DeleteTransaction(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Transaction deleted"})
}

func (h *Handler) UpdateMilestoneFlags(c *gin.Context) {
	var in crm.MilestoneFlagsInput
	if !h.bind(c, &in) {
		return
	}

	t, err := h.crm.UpdateMilestoneFlags(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, t)
}

func (h *Handler) UpdateMilestone(c *gin.Context) {
	var in crm.UpdateMilestoneInput
	if !h.bind(c, &in) {
		return
	}

	m, err := h.crm.UpdateMilestone(c.Request.Context(), callerFrom(c), c.Param("id"), c.Param("milestoneId"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, m)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.crm.ListDocuments(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, docs)
}

func (h *Handler) CreateDocument(c *gin.Context) {
	var in crm.CreateDocumentInput
	if !h.bind(c, &in) {
		return
	}

	doc, err := h.crm.CreateDocument(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, doc)
}

func (h *Handler) UpdateDocumentStatus(c *gin.Context) {
	var in crm.DocumentStatusInput
	if !h.bind(c, &in) {
		return
	}

	doc, err := h.crm.UpdateDocumentStatus(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.crm.DeleteDocument(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Document deleted"})
}
