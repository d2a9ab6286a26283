package query

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/gin-gonic/gin"
)

// Handler 通过HTTP提供查询接口。
type Handler struct {
	svc *Service
}

// NewHandler 组装HTTP适配器。
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 在 rg 上挂载查询路由。
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/games", h.RecentGames)
	rg.GET("/games/:id", h.GetGame)
	rg.GET("/games/:id/replay", h.Replay)
	rg.GET("/leaderboards/:board", h.Leaderboard)
	rg.GET("/players/standings", h.PlayerStandings)
	rg.GET("/stats", h.Summary)
	rg.GET("/stats/characters", h.CharacterStats)
}

func intQuery(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

func gameID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return 0, false
	}
	return id, true
}

// GetGame 返回一局已记录的对局。
func (h *Handler) GetGame(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	rec, err := h.svc.GetGame(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RecentGames 列出最新的对局，?limit= 默认为20。
func (h *Handler) RecentGames(c *gin.Context) {
	recs, err := h.svc.RecentGames(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": recs})
}

// Replay 返回一局的事件日志。
func (h *Handler) Replay(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	events, err := h.svc.Replay(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_id": id, "events": events})
}

// Leaderboard 返回排行榜前 ?k= 条记录。
func (h *Handler) Leaderboard(c *gin.Context) {
	board := Board(c.Param("board"))
	entries, err := h.svc.Leaderboard(c.Request.Context(), board, intQuery(c, "k"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": board, "entries": entries})
}

// PlayerStandings 按胜场对玩家排名。
func (h *Handler) PlayerStandings(c *gin.Context) {
	out, err := h.svc.PlayerStandings(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": out})
}

// Summary 返回全局计数器。
func (h *Handler) Summary(c *gin.Context) {
	stats, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CharacterStats 按难度汇总，?mode=scan|index|auto。
func (h *Handler) CharacterStats(c *gin.Context) {
	mode := AggregateMode(c.DefaultQuery("mode", string(ModeAuto)))
	switch mode {
	case ModeAuto, ModeScan, ModeIndex:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be auto, scan or index"})
		return
	}
	stats, err := h.svc.CharacterStats(c.Request.Context(), mode)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, record.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
	case errors.Is(err, ErrUnknownBoard):
		c.JSON(http.StatusBadRequest, gin.H{"error": "board must be longest_rounds or max_damage"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	}
}
