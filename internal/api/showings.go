package api

import (
	"dealflow/server/internal/crm"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListShowings(c *gin.Context) {
	var f crm.ShowingFilter
	if !h.bindQuery(c, &f) {
		return
	}

	showings, err := h.crm.ListShowings(c.Request.Context(), callerFrom(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, showings)
}

func (h *Handler) CreateShowing(c *gin.Context) {
	var in crm.CreateShowingInput
	if !h.bind(c, &in) {
		return
	}

	showing, err := h.crm.CreateShowing(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, showing)
}

func (h *Handler) GetShowing(c *gin.Context) {
	showing, err := h.crm.GetShowing(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, showing)
}

func (h *Handler) UpdateShowing(c *gin.Context) {
	var in crm.UpdateShowingInput
	if !h.bind(c, &in) {
		return
	}

	showing, err := h.crm.UpdateShowing(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, showing)
}

func (h *Handler) CancelShowing(c *gin.Context) {
	if err := h.crm.CancelShowing(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Showing cancelled"})
}

func (h *Handler) ShowingFeedback(c *gin.Context) {
	var in crm.ShowingFeedbackInput
	if !h.bind(c, &in) {
		return
	}

	showing, err := h.crm.SubmitFeedback(c.Request.Context(), callerFrom(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, showing)
}
