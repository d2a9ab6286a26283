package battle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

// TokenHeader 在 Start 之后的每次调用中携带会话令牌。
const TokenHeader = "X-Battle-Token"

const maxPlayerNameLen = 32

// Handler 通过HTTP暴露注册表。
type Handler struct {
	registry *Registry
	signer   *token.Signer
}

// NewHandler 组装HTTP适配器。
func NewHandler(registry *Registry, signer *token.Signer) *Handler {
	return &Handler{registry: registry, signer: signer}
}

type startRequest struct {
	PlayerName string `json:"player_name" binding:"required"`
	Difficulty string `json:"difficulty"`
}

type startResponse struct {
	Token    string   `json:"token"`
	Snapshot Snapshot `json:"snapshot"`
}

// Register 在 rg 上挂载战斗路由。startGuards 只在 Start 之前运行。
func (h *Handler) Register(rg *gin.RouterGroup, startGuards ...gin.HandlerFunc) {
	rg.POST("", append(startGuards, h.Start)...)
	owned := rg.Group("/:id", h.requireToken)
	{
		owned.GET("", h.Get)
		owned.POST("/turn", h.Turn)
		owned.POST("/auto", h.Auto)
		owned.POST("/commit", h.Recommit)
	}
}

// Start 开启一场战斗，并返回后续操作所需的令牌。
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	name := strings.TrimSpace(req.PlayerName)
	if name == "" || len([]rune(name)) > maxPlayerNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_name must be 1-32 characters"})
		return
	}

	snap, err := h.registry.Start(c.Request.Context(), name, combatant.ParseDifficulty(req.Difficulty))
	if err != nil {
		h.fail(c, err)
		return
	}
	tok, err := h.signer.Issue(snap.GameID, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue session token"})
		return
	}
	c.JSON(http.StatusCreated, startResponse{Token: tok, Snapshot: snap})
}

// Get 返回战斗的实时状态。
func (h *Handler) Get(c *gin.Context) {
	snap, err := h.registry.Get(c.GetInt64("gameID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Turn 按提交的输入结算一个回合。
func (h *Handler) Turn(c *gin.Context) {
	var in TurnInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	h.act(c, in)
}

// Auto 让引擎代替玩家进行一个回合。
func (h *Handler) Auto(c *gin.Context) {
	h.act(c, TurnInput{AutoPlay: true})
}

func (h *Handler) act(c *gin.Context, in TurnInput) {
	snap, err := h.registry.Act(c.Request.Context(), c.GetInt64("gameID"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Recommit 重试已结束战斗的持久化。
func (h *Handler) Recommit(c *gin.Context) {
	snap, err := h.registry.Recommit(c.Request.Context(), c.GetInt64("gameID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) requireToken(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	if _, err := h.signer.Verify(c.GetHeader(TokenHeader), id); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}
	c.Set("gameID", id)
	c.Next()
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "battle not found or already finished"})
	case errors.Is(err, ErrGameOver):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, record.ErrStoreUnavailable), errors.Is(err, ErrDuplicateGameID):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cannot start a battle right now, try again later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
