package handlers

import (
	"net/http"
	"strconv"

	"dilemma_webapp/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StartGameRequest - вход в подбор пары
type StartGameRequest struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// SubmitChoiceRequest - выбор игрока в раунде
type SubmitChoiceRequest struct {
	SessionID   string `json:"sessionId"`
	PlayerID    string `json:"playerId"`
	RoundNumber int    `json:"roundNumber"`
	Choice      string `json:"choice"`
}

type closeSessionRequest struct {
	PlayerID string `json:"playerId"`
}

const historyAuditLimit = 200

// POST /api/game/start
func (h *Handler) StartGame(c *gin.Context) {
	var req StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondStatus(c, http.StatusBadRequest, "Invalid Request", "invalid request body")
		return
	}

	res, err := h.Game.Join(c.Request.Context(), req.PlayerID, req.PlayerName)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/game/choice
func (h *Handler) SubmitChoice(c *gin.Context) {
	var req SubmitChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondStatus(c, http.StatusBadRequest, "Invalid Request", "invalid request body")
		return
	}
	if !isUUID(req.SessionID) {
		RespondError(c, domain.ErrInvalidSessionID)
		return
	}
	if !isUUID(req.PlayerID) {
		RespondError(c, domain.ErrInvalidPlayerID)
		return
	}

	res, err := h.Game.SubmitChoice(c.Request.Context(), req.SessionID, req.PlayerID, req.RoundNumber, req.Choice)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/game/:sessionId
func (h *Handler) GetGameInfo(c *gin.Context) {
	info, err := h.Game.GetSessionInfo(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GET /api/game/:sessionId/round/:roundNumber
func (h *Handler) GetRoundInfo(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("roundNumber"))
	if err != nil || n < 1 {
		RespondError(c, domain.ErrRoundNotFound)
		return
	}

	info, err := h.Game.GetRoundInfo(c.Request.Context(), c.Param("sessionId"), n)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GET /api/game/:sessionId/history
func (h *Handler) GetHistory(c *gin.Context) {
	history, err := h.Game.GetSessionHistory(c.Request.Context(), c.Param("sessionId"), historyAuditLimit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// POST /api/game/:sessionId/close
func (h *Handler) CloseSession(c *gin.Context) {
	var req closeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondStatus(c, http.StatusBadRequest, "Invalid Request", "invalid request body")
		return
	}
	if !isUUID(req.PlayerID) {
		RespondError(c, domain.ErrInvalidPlayerID)
		return
	}

	info, err := h.Game.CloseSession(c.Request.Context(), c.Param("sessionId"), req.PlayerID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
