// Package api is the query layer (C6) and status surface (C9): a Gin HTTP
// server over the two read-only stores plus an in-process metrics block,
// adapted from the teacher's SetupRouter/CORS-middleware/route-group shape
// (internal/api/routes.go) onto the ordinals/BRC-20 routes spec §6 names
// instead of the teacher's CoinJoin-analysis handlers.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	brc20model "github.com/rawblock/ordinals-index/internal/brc20/model"
	"github.com/rawblock/ordinals-index/internal/chaintip"
	"github.com/rawblock/ordinals-index/internal/config"
	"github.com/rawblock/ordinals-index/internal/db"
	ordmodel "github.com/rawblock/ordinals-index/internal/ordinals/model"
	"github.com/rawblock/ordinals-index/internal/satoshi"
	"github.com/rawblock/ordinals-index/pkg/page"
)

// APIHandler bundles every dependency the query-layer handlers need.
// Mirrors the teacher's APIHandler struct shape, swapping the
// forensics-store/Bitcoin-RPC/scanner fields for the ordinals/BRC-20
// read stores and status trackers.
type APIHandler struct {
	ord     *db.OrdinalsStore
	brc     *db.Brc20Store
	tip     *chaintip.Tracker
	cfg     config.Config
	hub     *Hub
	metrics *Metrics
}

// NewAPIHandler constructs the handler bundle SetupRouter wires into routes.
func NewAPIHandler(ord *db.OrdinalsStore, brc *db.Brc20Store, tip *chaintip.Tracker, cfg config.Config, hub *Hub, metrics *Metrics) *APIHandler {
	return &APIHandler{ord: ord, brc: brc, tip: tip, cfg: cfg, hub: hub, metrics: metrics}
}

// SetupRouter wires every route from spec §6 onto a Gin engine, keeping the
// teacher's CORS-middleware-reading-ALLOWED_ORIGINS shape and rate limiter.
func SetupRouter(h *APIHandler, admin *AdminController) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware(h.cfg.AllowedOrigins))

	limiter := NewRateLimiter(60, 30)
	r.Use(limiter.Middleware())

	v1 := r.Group("/v1")
	{
		v1.GET("/", h.handleStatus)

		v1.GET("/inscriptions", h.handleListInscriptions)
		v1.GET("/inscriptions/transfers", h.handleTransfersByBlock)
		v1.GET("/inscriptions/:idOrNumber", h.handleGetInscription)
		v1.GET("/inscriptions/:idOrNumber/content", h.handleGetInscriptionContent)
		v1.GET("/inscriptions/:idOrNumber/transfers", h.handleListInscriptionTransfers)

		v1.GET("/sats/:ordinal", h.handleGetSat)
		v1.GET("/sats/:ordinal/inscriptions", h.handleListInscriptionsOnSat)

		v1.GET("/stats/inscriptions", h.handleStatsInscriptions)

		v1.GET("/ws", h.hub.Subscribe)

		adminGroup := v1.Group("/admin")
		adminGroup.Use(AuthMiddleware())
		{
			adminGroup.POST("/reindex", admin.handleReindex)
			adminGroup.POST("/rollback", admin.handleRollback)
		}
	}

	brc20 := r.Group("/brc-20")
	{
		brc20.GET("/tokens", h.handleListTokens)
		brc20.GET("/tokens/:ticker", h.handleGetToken)
		brc20.GET("/tokens/:ticker/holders", h.handleListHolders)
		brc20.GET("/activity", h.handleListActivity)
		brc20.GET("/balances/:address", h.handleListBalances)
	}

	return r
}

// corsMiddleware matches an incoming Origin against the comma-separated
// ALLOWED_ORIGINS env value; an empty allowlist means "allow any", matching
// the teacher's permissive local-dashboard default.
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	var allowed []string
	if allowedOrigins != "" {
		allowed = strings.Split(allowedOrigins, ",")
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowed) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			for _, o := range allowed {
				if strings.TrimSpace(o) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// pageParams reads the standard limit/offset query parameters (spec §6).
func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return limit, offset
}

// clampEcho mirrors the stores' internal page-bounds clamp so the envelope
// always echoes back the limit/offset actually applied.
func clampEcho(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ─── status (C9) ─────────────────────────────────────────────────────

func (h *APIHandler) handleStatus(c *gin.Context) {
	maxBlessed, err := h.ord.MaxBlessedNumber(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	minCursed, err := h.ord.MinCursedNumber(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":               h.cfg.ServerVersion,
		"tipHeight":             h.tip.Height(),
		"tipHash":               h.tip.Hash(),
		"blessedMaxNumber":      maxBlessed,
		"cursedMaxNumber":       minCursed,
		"ingestBlocksPerSec":    h.metrics.BlocksPerSecond(),
		"rollbackCount":         h.metrics.RollbackCount(),
		"rejectedBrc20OpsCount": h.metrics.RejectedOpCount(),
	})
}

// ─── inscriptions ────────────────────────────────────────────────────

func (h *APIHandler) handleListInscriptions(c *gin.Context) {
	limit, offset := pageParams(c)
	f := db.InscriptionFilter{
		Address:  c.Query("address"),
		MimeType: c.Query("mimeType"),
		Rarity:   c.Query("rarity"),
		Limit:    limit,
		Offset:   offset,
	}
	rows, total, err := h.ord.ListInscriptions(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lim, off := clampEcho(limit, offset)
	c.JSON(http.StatusOK, page.New(rows, total, lim, off))
}

// resolveInscription accepts either an inscription ID (txid + "i" + index)
// or a signed sequential number, per spec §6's "{id|number}" path segment.
func (h *APIHandler) resolveInscription(c *gin.Context) (*ordmodel.Inscription, error) {
	idOrNumber := c.Param("idOrNumber")
	if n, err := strconv.ParseInt(idOrNumber, 10, 64); err == nil {
		return h.ord.GetInscriptionByNumber(c.Request.Context(), n)
	}
	return h.ord.GetInscription(c.Request.Context(), idOrNumber)
}

func (h *APIHandler) handleGetInscription(c *gin.Context) {
	insc, err := h.resolveInscription(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if insc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "inscription not found"})
		return
	}
	c.JSON(http.StatusOK, insc)
}

func (h *APIHandler) handleGetInscriptionContent(c *gin.Context) {
	insc, err := h.resolveInscription(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if insc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "inscription not found"})
		return
	}
	content, contentType, err := h.ord.GetInscriptionContent(c.Request.Context(), insc.InscriptionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Delegate-content fallback: an inscription with an empty content body
	// but a `delegate` ref serves its delegate's content instead (spec §4.2).
	if len(content) == 0 && insc.Delegate != nil && *insc.Delegate != "" {
		delegated, delegatedType, derr := h.ord.GetInscriptionContent(c.Request.Context(), *insc.Delegate)
		if derr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": derr.Error()})
			return
		}
		content, contentType = delegated, delegatedType
	}
	if contentType == "" {
		contentType = insc.ContentType
	}
	c.Data(http.StatusOK, contentType, content)
}

func (h *APIHandler) handleListInscriptionTransfers(c *gin.Context) {
	insc, err := h.resolveInscription(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if insc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "inscription not found"})
		return
	}
	rows, err := h.ord.ListInscriptionTransfers(c.Request.Context(), insc.InscriptionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page.New(rows, int64(len(rows)), len(rows), 0))
}

func (h *APIHandler) handleTransfersByBlock(c *gin.Context) {
	block := c.Query("block")
	if block == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "block query parameter is required"})
		return
	}
	var rows []ordmodel.InscriptionTransfer
	var err error
	if height, perr := strconv.ParseInt(block, 10, 64); perr == nil {
		rows, err = h.ord.ListTransfersByHeight(c.Request.Context(), height)
	} else {
		rows, err = h.ord.ListTransfersByHash(c.Request.Context(), block)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page.New(rows, int64(len(rows)), len(rows), 0))
}

// ─── sats ────────────────────────────────────────────────────────────

func (h *APIHandler) handleGetSat(c *gin.Context) {
	number, err := strconv.ParseInt(c.Param("ordinal"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ordinal must be an integer"})
		return
	}
	sat, err := satoshi.Derive(number)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loc, err := h.ord.GetCurrentLocation(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sat": sat, "location": loc})
}

func (h *APIHandler) handleListInscriptionsOnSat(c *gin.Context) {
	number, err := strconv.ParseInt(c.Param("ordinal"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ordinal must be an integer"})
		return
	}
	rows, err := h.ord.InscriptionsOnSat(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page.New(rows, int64(len(rows)), len(rows), 0))
}

// ─── stats ───────────────────────────────────────────────────────────

func (h *APIHandler) handleStatsInscriptions(c *gin.Context) {
	var from, to int64
	if v := c.Query("from"); v != "" {
		from, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("to"); v != "" {
		to, _ = strconv.ParseInt(v, 10, 64)
	}
	limit, offset := pageParams(c)

	rows, total, err := h.ord.ListCountsByBlock(c.Request.Context(), from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	byMime, err := h.ord.CounterTotals(c.Request.Context(), "counts_by_mime_type")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	byRarity, err := h.ord.CounterTotals(c.Request.Context(), "counts_by_sat_rarity")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	byType, err := h.ord.CounterTotals(c.Request.Context(), "counts_by_type")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	totalInscriptions, err := h.ord.TotalInscriptions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lim, off := clampEcho(limit, offset)
	c.JSON(http.StatusOK, gin.H{
		"totalInscriptions": totalInscriptions,
		"countsByMimeType":  byMime,
		"countsBySatRarity": byRarity,
		"countsByType":      byType,
		"byBlock":           page.New(rows, total, lim, off),
	})
}

// ─── BRC-20 ──────────────────────────────────────────────────────────

// tokenDTO is the JSON view of a brc20/model.Token, rendering its
// decimal.Amount fields as display strings since decimal.Amount holds
// unexported internal state.
type tokenDTO struct {
	Ticker            string `json:"ticker"`
	InscriptionID     string `json:"inscriptionId"`
	InscriptionNumber int64  `json:"inscriptionNumber"`
	BlockHeight       int64  `json:"deployBlockHeight"`
	Address           string `json:"deployAddress"`
	Max               string `json:"max"`
	Limit             string `json:"limit"`
	Decimals          int    `json:"decimals"`
	SelfMint          bool   `json:"selfMint"`
	MintedSupply      string `json:"mintedSupply"`
	TxCount           int64  `json:"txCount"`
	Timestamp         string `json:"deployTimestamp"`
}

func toTokenDTO(t brc20model.Token) tokenDTO {
	return tokenDTO{
		Ticker: t.DisplayTicker, InscriptionID: t.InscriptionID, InscriptionNumber: t.InscriptionNumber,
		BlockHeight: t.BlockHeight, Address: t.Address, Max: t.Max.Display(), Limit: t.Limit.Display(),
		Decimals: t.Decimals, SelfMint: t.SelfMint, MintedSupply: t.MintedSupply.Display(),
		TxCount: t.TxCount, Timestamp: t.Timestamp.Format(time.RFC3339),
	}
}

func (h *APIHandler) handleListTokens(c *gin.Context) {
	limit, offset := pageParams(c)
	rows, total, err := h.brc.ListTokens(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	dtos := make([]tokenDTO, len(rows))
	for i, t := range rows {
		dtos[i] = toTokenDTO(t)
	}
	lim, off := clampEcho(limit, offset)
	c.JSON(http.StatusOK, page.New(dtos, total, lim, off))
}

func (h *APIHandler) handleGetToken(c *gin.Context) {
	ticker := strings.ToLower(c.Param("ticker"))
	tok, err := h.brc.GetToken(c.Request.Context(), ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tok == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}
	c.JSON(http.StatusOK, toTokenDTO(*tok))
}

func (h *APIHandler) handleListHolders(c *gin.Context) {
	ticker := strings.ToLower(c.Param("ticker"))
	limit, offset := pageParams(c)
	rows, total, err := h.brc.ListHolders(c.Request.Context(), ticker, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type holderDTO struct {
		Address string `json:"address"`
		Avail   string `json:"avail"`
		Trans   string `json:"transferable"`
		Total   string `json:"total"`
	}
	dtos := make([]holderDTO, len(rows))
	for i, hr := range rows {
		dtos[i] = holderDTO{Address: hr.Address, Avail: hr.Balance.Avail.Display(), Trans: hr.Balance.Trans.Display(), Total: hr.Balance.Total().Display()}
	}
	lim, off := clampEcho(limit, offset)
	c.JSON(http.StatusOK, page.New(dtos, total, lim, off))
}

func (h *APIHandler) handleListActivity(c *gin.Context) {
	ticker := strings.ToLower(c.Query("ticker"))
	limit, offset := pageParams(c)
	rows, total, err := h.brc.ListActivity(c.Request.Context(), ticker, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type opDTO struct {
		Ticker            string  `json:"ticker"`
		Operation         string  `json:"op"`
		InscriptionID     string  `json:"inscriptionId"`
		InscriptionNumber int64   `json:"inscriptionNumber"`
		BlockHeight       int64   `json:"blockHeight"`
		Address           string  `json:"address"`
		ToAddress         *string `json:"toAddress,omitempty"`
		Amount            string  `json:"amount"`
		Timestamp         string  `json:"timestamp"`
	}
	dtos := make([]opDTO, len(rows))
	for i, op := range rows {
		dtos[i] = opDTO{
			Ticker: op.Ticker, Operation: string(op.Operation), InscriptionID: op.InscriptionID,
			InscriptionNumber: op.InscriptionNumber, BlockHeight: op.BlockHeight, Address: op.Address,
			ToAddress: op.ToAddress, Amount: op.Amount.Display(), Timestamp: op.Timestamp.Format(time.RFC3339),
		}
	}
	lim, off := clampEcho(limit, offset)
	c.JSON(http.StatusOK, page.New(dtos, total, lim, off))
}

func (h *APIHandler) handleListBalances(c *gin.Context) {
	address := c.Param("address")
	limit, offset := pageParams(c)
	rows, total, err := h.brc.ListBalancesForAddress(c.Request.Context(), address, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type balanceDTO struct {
		Ticker string `json:"ticker"`
		Avail  string `json:"avail"`
		Trans  string `json:"transferable"`
		Total  string `json:"total"`
	}
	dtos := make([]balanceDTO, len(rows))
	for i, b := range rows {
		dtos[i] = balanceDTO{Ticker: b.Ticker, Avail: b.Avail.Display(), Trans: b.Trans.Display(), Total: b.Total().Display()}
	}
	lim, off := clampEcho(limit, offset)
	c.JSON(http.StatusOK, page.New(dtos, total, lim, off))
}
