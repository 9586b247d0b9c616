package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/ordinals-index/internal/db"
)

// AdminController exposes the two operator actions spec §6 reserves behind
// AuthMiddleware: request a full reindex from genesis, or request a rollback
// to an earlier height. Neither runs synchronously in this process -- the
// API process only writes the request to app.admin_requests (db.Store's
// EnqueueAdminRequest/PollAdminRequests pair, the same poll-the-database
// pattern cmd/api already uses to learn the indexer's checkpoint), since
// cmd/api and cmd/indexer are separate OS processes that share nothing but
// the database.
type AdminController struct {
	store *db.Store
}

// NewAdminController returns a controller backed by store.
func NewAdminController(store *db.Store) *AdminController {
	return &AdminController{store: store}
}

func (a *AdminController) handleReindex(c *gin.Context) {
	if err := a.store.EnqueueAdminRequest(c.Request.Context(), db.AdminRequestReindex, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reindex requested"})
}

type rollbackRequest struct {
	ToHeight int64 `json:"toHeight"`
}

func (a *AdminController) handleRollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ToHeight < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "toHeight must be >= 0"})
		return
	}
	if err := a.store.EnqueueAdminRequest(c.Request.Context(), db.AdminRequestRollback, &req.ToHeight); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "rollback requested", "toHeight": req.ToHeight})
}
