package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/model"
	"skillswap/internal/service/negotiation"
)

// Negotiator is the engine surface used by the offer routes.
type Negotiator interface {
	MakeOffer(ctx context.Context, senderID, postID int64, in negotiation.OfferInput) (*model.Offer, error)
	CounterOffer(ctx context.Context, offerID, responderID int64, in negotiation.TermsInput) (*model.CounterOffer, error)
	AcceptOffer(ctx context.Context, offerID, receiverID int64) error
	RejectOffer(ctx context.Context, offerID, receiverID int64) error
	AcceptCounterOffer(ctx context.Context, counterOfferID, responderID int64) error
	RejectCounterOffer(ctx context.Context, counterOfferID, responderID int64) error
	WithdrawCounterOffer(ctx context.Context, counterOfferID, responderID int64) error
	UpdateSentOffer(ctx context.Context, offerID, senderID int64, in negotiation.TermsInput) (*model.Offer, error)
	UpdateSentCounterOffer(ctx context.Context, counterOfferID, responderID int64, in negotiation.TermsInput) (*model.CounterOffer, error)

	MyOffers(ctx context.Context, userID int64) ([]model.OfferView, error)
	MyOffer(ctx context.Context, offerID, userID int64) (*model.OfferView, error)
	MyCounterOffers(ctx context.Context, userID int64) ([]model.CounterOfferView, error)
	MyCounterOffer(ctx context.Context, counterOfferID, userID int64) (*model.CounterOfferView, error)
	MySentCounterOffers(ctx context.Context, userID int64) ([]model.CounterOfferView, error)
	MySentCounterOffer(ctx context.Context, counterOfferID, userID int64) (*model.CounterOfferView, error)
}

type OfferHandler struct {
	engine Negotiator
	logger *zap.Logger
}

func NewOfferHandler(engine Negotiator, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{engine: engine, logger: logger}
}

type offerRequest struct {
	Message    string           `json:"message" binding:"required"`
	StartDate  time.Time        `json:"start_date" binding:"required"`
	Milestones model.Milestones `json:"milestones" binding:"required"`
}

// termsRequest is the body of counters and edits; absent fields keep their value.
type termsRequest struct {
	Message    *string          `json:"message"`
	StartDate  *time.Time       `json:"start_date"`
	Milestones model.Milestones `json:"milestones"`
}

func (r termsRequest) input() negotiation.TermsInput {
	return negotiation.TermsInput{Message: r.Message, StartDate: r.StartDate, Milestones: r.Milestones}
}

// MakeOffer handles POST /posts/:postId/offers
func (h *OfferHandler) MakeOffer(c *gin.Context) {
	postID, valid := pathID(c, "postId")
	if !valid {
		return
	}
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StartDate.IsZero() {
		badRequest(c, "message, start_date and milestones are required")
		return
	}
	offer, err := h.engine.MakeOffer(c.Request.Context(), currentUser(c), postID, negotiation.OfferInput{
		Message:    req.Message,
		StartDate:  req.StartDate,
		Milestones: req.Milestones,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "Offer sent successfully", offer)
}

// CounterOffer handles POST /offers/:offerId/counter
func (h *OfferHandler) CounterOffer(c *gin.Context) {
	offerID, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid counter offer")
		return
	}
	counter, err := h.engine.CounterOffer(c.Request.Context(), offerID, currentUser(c), req.input())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "Counter offer sent successfully", counter)
}

// AcceptOffer handles POST /offers/:offerId/accept
func (h *OfferHandler) AcceptOffer(c *gin.Context) {
	h.decide(c, "offerId", h.engine.AcceptOffer, "Offer accepted successfully")
}

// RejectOffer handles POST /offers/:offerId/reject
func (h *OfferHandler) RejectOffer(c *gin.Context) {
	h.decide(c, "offerId", h.engine.RejectOffer, "Offer rejected successfully")
}

// AcceptCounterOffer handles POST /counter-offers/:counterOfferId/accept
func (h *OfferHandler) AcceptCounterOffer(c *gin.Context) {
	h.decide(c, "counterOfferId", h.engine.AcceptCounterOffer, "Counter offer accepted successfully")
}

// RejectCounterOffer handles POST /counter-offers/:counterOfferId/reject
func (h *OfferHandler) RejectCounterOffer(c *gin.Context) {
	h.decide(c, "counterOfferId", h.engine.RejectCounterOffer, "Counter offer rejected successfully")
}

// WithdrawCounterOffer handles DELETE /counter-offers/:counterOfferId
func (h *OfferHandler) WithdrawCounterOffer(c *gin.Context) {
	h.decide(c, "counterOfferId", h.engine.WithdrawCounterOffer, "Counter offer withdrawn successfully")
}

func (h *OfferHandler) decide(c *gin.Context, param string, fn func(context.Context, int64, int64) error, message string) {
	id, valid := pathID(c, param)
	if !valid {
		return
	}
	if err := fn(c.Request.Context(), id, currentUser(c)); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, message, nil)
}

// UpdateSentOffer handles PATCH /offers/:offerId
func (h *OfferHandler) UpdateSentOffer(c *gin.Context) {
	offerID, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid offer update")
		return
	}
	offer, err := h.engine.UpdateSentOffer(c.Request.Context(), offerID, currentUser(c), req.input())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Offer updated successfully", offer)
}

// UpdateSentCounterOffer handles PATCH /counter-offers/:counterOfferId
func (h *OfferHandler) UpdateSentCounterOffer(c *gin.Context) {
	id, valid := pathID(c, "counterOfferId")
	if !valid {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid counter offer update")
		return
	}
	counter, err := h.engine.UpdateSentCounterOffer(c.Request.Context(), id, currentUser(c), req.input())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offer updated successfully", counter)
}

// MyOffers handles GET /offers
func (h *OfferHandler) MyOffers(c *gin.Context) {
	offers, err := h.engine.MyOffers(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Offers fetched successfully", offers)
}

// MyOffer handles GET /offers/:offerId
func (h *OfferHandler) MyOffer(c *gin.Context) {
	id, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	offer, err := h.engine.MyOffer(c.Request.Context(), id, currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Offer fetched successfully", offer)
}

// MyCounterOffers handles GET /counter-offers
func (h *OfferHandler) MyCounterOffers(c *gin.Context) {
	list, err := h.engine.MyCounterOffers(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offers fetched successfully", list)
}

// MyCounterOffer handles GET /counter-offers/:counterOfferId
func (h *OfferHandler) MyCounterOffer(c *gin.Context) {
	id, valid := pathID(c, "counterOfferId")
	if !valid {
		return
	}
	v, err := h.engine.MyCounterOffer(c.Request.Context(), id, currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offer fetched successfully", v)
}

// MySentCounterOffers handles GET /sent-counter-offers
func (h *OfferHandler) MySentCounterOffers(c *gin.Context) {
	list, err := h.engine.MySentCounterOffers(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offers fetched successfully", list)
}

// MySentCounterOffer handles GET /sent-counter-offers/:counterOfferId
func (h *OfferHandler) MySentCounterOffer(c *gin.Context) {
	id, valid := pathID(c, "counterOfferId")
	if !valid {
		return
	}
	v, err := h.engine.MySentCounterOffer(c.Request.Context(), id, currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Counter offer fetched successfully", v)
}
