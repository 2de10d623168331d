package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/model"
	"skillswap/internal/service/negotiation"
	"skillswap/internal/service/penalty"
)

type CounterOfferAdmin interface {
	AdminListCounterOffers(ctx context.Context, limit, offset int) ([]model.CounterOffer, error)
	AdminGetCounterOffer(ctx context.Context, id int64) (*model.CounterOffer, error)
	AdminUpdateCounterOffer(ctx context.Context, id int64, in negotiation.TermsInput) (*model.CounterOffer, error)
	AdminDeleteCounterOffer(ctx context.Context, id int64) error
}

type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type PenaltyApplier interface {
	Apply(ctx context.Context, projectID, userID int64) (penalty.Result, error)
}

type AdminHandler struct {
	counters  CounterOfferAdmin
	replay    OutboxReplayer
	penalties PenaltyApplier
	logger    *zap.Logger
}

func NewAdminHandler(counters CounterOfferAdmin, replay OutboxReplayer, penalties PenaltyApplier, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		counters:  counters,
		replay:    replay,
		penalties: penalties,
		logger:    logger,
	}
}

// ListCounterOffers handles GET /admin/counter-offers?limit=50&offset=0
func (h *AdminHandler) ListCounterOffers(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	list, err := h.counters.AdminListCounterOffers(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offers fetched successfully", list)
}

// GetCounterOffer handles GET /admin/counter-offers/:counterOfferId
func (h *AdminHandler) GetCounterOffer(c *gin.Context) {
	id, valid := pathID(c, "counterOfferId")
	if !valid {
		return
	}
	co, err := h.counters.AdminGetCounterOffer(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offer fetched successfully", co)
}

// UpdateCounterOffer handles PATCH /admin/counter-offers/:counterOfferId
func (h *AdminHandler) UpdateCounterOffer(c *gin.Context) {
	id, valid := pathID(c, "counterOfferId")
	if !valid {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid counter offer update")
		return
	}
	co, err := h.counters.AdminUpdateCounterOffer(c.Request.Context(), id, req.input())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offer updated successfully", co)
}

// DeleteCounterOffer handles DELETE /admin/counter-offers/:counterOfferId
func (h *AdminHandler) DeleteCounterOffer(c *gin.Context) {
	id, valid := pathID(c, "counterOfferId")
	if !valid {
		return
	}
	if err := h.counters.AdminDeleteCounterOffer(c.Request.Context(), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offer deleted successfully", nil)
}

// ApplyPenalty handles POST /admin/projects/:projectId/penalties/:userId
func (h *AdminHandler) ApplyPenalty(c *gin.Context) {
	projectID, valid := pathID(c, "projectId")
	if !valid {
		return
	}
	userID, valid := pathID(c, "userId")
	if !valid {
		return
	}
	res, err := h.penalties.Apply(c.Request.Context(), projectID, userID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	if res.Duplicate {
		ok(c, http.StatusOK, "Penalty already applied", nil)
		return
	}
	ok(c, http.StatusOK, "Penalty applied", res.Verdict)
}

// ReplayOutboxEvent handles POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || eventID <= 0 {
		badRequest(c, "invalid id parameter")
		return
	}

	if err := h.replay.ReplayEvent(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Event replayed", gin.H{"event_id": eventID})
}

// ReplayFailedEvents handles POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	n, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Replay completed", gin.H{"success_count": n, "limit": limit})
}
