package api

import (
	"os"

	"dealflow/server/internal/assistant"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/crm"
	"dealflow/server/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	crm       *crm.Service
	assistant *assistant.Service
	tokens    *auth.TokenIssuer
	logger    *logrus.Logger
}

func NewHandler(crmService *crm.Service, assistantService *assistant.Service, tokens *auth.TokenIssuer, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	useJSONFieldNames()

	return &Handler{
		crm:       crmService,
		assistant: assistantService,
		tokens:    tokens,
		logger:    logger,
	}
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, gin.H{"status": "ok"})
}

func (h *Handler) Register(c *gin.Context) {
	var in crm.RegisterInput
	if !h.bind(c, &in) {
		return
	}

	user, err := h.crm.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.tokens.Issue(auth.CallerFromUser(user))
	if err != nil {
		h.fail(c, err)
		return
	}

	created(c, authResponse{User: user, Token: token})
}

func (h *Handler) Login(c *gin.Context) {
	var in crm.LoginInput
	if !h.bind(c, &in) {
		return
	}

	user, err := h.crm.Login(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.tokens.Issue(auth.CallerFromUser(user))
	if err != nil {
		h.fail(c, err)
		return
	}

	ok(c, authResponse{User: user, Token: token})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.crm.CurrentUser(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, user)
}

type clientResponse struct {
	Client            *models.User `json:"client"`
	TemporaryPassword string       `json:"temporaryPassword"`
}

func (h *Handler) ListClients(c *gin.Context) {
	clients, err := h.crm.ListClients(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, clients)
}

func (h *Handler) CreateClient(c *gin.Context) {
	var in crm.ClientInput
	if !h.bind(c, &in) {
		return
	}

	client, password, err := h.crm.CreateClient(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, clientResponse{Client: client, TemporaryPassword: password})
}

func (h *Handler) ResetClientPassword(c *gin.Context) {
	password, err := h.crm.ResetClientPassword(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"temporaryPassword": password})
}
