package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goinvault/internal/chain"
	"goinvault/internal/claim"
	"goinvault/internal/db"
	"goinvault/internal/domain/miner"
	"goinvault/internal/messaging/settlement"
	"goinvault/internal/observability/metrics"
)

// Dependencies enumerates services required by API handlers.
type Dependencies struct {
	Settlement   *claim.Service
	MinerService *miner.Service
	Gateway      *chain.Gateway
	Store        *db.Store
	Publisher    *settlement.Publisher
	Mode         claim.Mode
}

// New builds a gin.Engine with all routes registered.
func New(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.GinMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h := &handler{deps: deps}

	router.POST("/claim", h.submitClaim)
	router.GET("/claim/status/:hash", h.claimStatus)
	router.GET("/claims/recent", h.recentClaims)
	router.GET("/miner/:address", h.minerState)
	router.POST("/miner/:address/accrue", h.accrue)
	router.PUT("/miner/:address/state", h.saveMiningState)
	router.GET("/token/info", h.tokenInfo)
	router.GET("/token/balance/:address", h.tokenBalance)

	return router
}

type handler struct {
	deps Dependencies
}

type accrueRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type miningStateRequest struct {
	MiningState map[string]any `json:"mining_state" binding:"required"`
}

// submitClaim is the settlement boundary: one request, one outcome.
// On confirmed success the handler reconciles server-side state by
// zeroing the claimant's pending balance and emitting the settlement
// event; every failure leaves that state untouched.
func (h *handler) submitClaim(c *gin.Context) {
	var req claim.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.deps.Settlement.SubmitClaim(c.Request.Context(), req)
	if outcome.Success {
		if err := h.deps.Store.ResetPendingTokens(c.Request.Context(), req.Claimant); err != nil {
			// The settlement is final; the accumulator catches up on
			// the next successful write.
			_ = c.Error(err)
		}
		if h.deps.Publisher != nil {
			base, _ := claim.ParseAmount(req.Amount)
			event := claim.SettlementEvent{
				Claimant:   req.Claimant,
				Amount:     req.Amount,
				AmountBase: base.String(),
				Nonce:      req.Nonce,
				TxHash:     outcome.TxHash,
				Mode:       h.deps.Mode,
				Timestamp:  time.Now().UTC(),
			}
			if err := h.deps.Publisher.Publish(c.Request.Context(), event); err != nil {
				_ = c.Error(err)
			}
		}
		c.JSON(http.StatusOK, outcome)
		return
	}
	c.JSON(statusForKind(outcome.Kind), outcome)
}

func statusForKind(kind claim.ErrorKind) int {
	switch kind {
	case claim.KindInvalidRequest:
		return http.StatusBadRequest
	case claim.KindInvalidSignature:
		return http.StatusUnauthorized
	case claim.KindReplayDetected:
		return http.StatusConflict
	case claim.KindConfirmationTimeout:
		// Indeterminate, not failed: the client should re-check the
		// returned transaction hash.
		return http.StatusAccepted
	case claim.KindWrongNetwork, claim.KindNetworkUnreachable,
		claim.KindInsufficientFunds, claim.KindInsufficientReserve,
		claim.KindAuthorizationDenied:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *handler) claimStatus(c *gin.Context) {
	raw := c.Param("hash")
	if !strings.HasPrefix(raw, "0x") || len(raw) != 66 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction hash"})
		return
	}
	state, err := h.deps.Gateway.ReceiptStatus(c.Request.Context(), common.HexToHash(raw))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handler) recentClaims(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	claims, err := h.deps.MinerService.RecentClaims(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

func (h *handler) minerState(c *gin.Context) {
	state, err := h.deps.MinerService.State(c.Request.Context(), c.Param("address"))
	if err != nil {
		switch {
		case errors.Is(err, miner.ErrInvalidAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, miner.ErrUnknownMiner):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handler) accrue(c *gin.Context) {
	var req accrueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.MinerService.Accrue(c.Request.Context(), c.Param("address"), req.Amount); err != nil {
		if errors.Is(err, miner.ErrInvalidAddress) || errors.Is(err, claim.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) saveMiningState(c *gin.Context) {
	var req miningStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	blob, err := json.Marshal(req.MiningState)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.MinerService.SaveMiningState(c.Request.Context(), c.Param("address"), blob); err != nil {
		if errors.Is(err, miner.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) tokenInfo(c *gin.Context) {
	info, err := h.deps.Gateway.TokenMetadata(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) tokenBalance(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}
	balance, err := h.deps.Gateway.TokenBalance(c.Request.Context(), common.HexToAddress(address))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "balance": claim.FormatAmount(balance)})
}
