// Package realtime provides chat rooms shared by every API instance.
//
// Room membership lives in redis so workers can provision rooms and any API
// instance can check them. Events are published on a redis channel and each
// instance's Hub forwards them to its own websocket clients.
package realtime

import (
	"fmt"

	"skillswap/internal/model"
)

// Event names pushed to clients.
const (
	EventMessage       = "message"
	EventOfferAccepted = "offerAccepted"
	EventJoined        = "joined"
	EventError         = "error"
)

func OfferRoom(offerID, senderID, receiverID int64) string {
	return fmt.Sprintf("offer_%d_%d_%d", offerID, senderID, receiverID)
}

func CounterOfferRoom(offerID, senderID, receiverID int64) string {
	return fmt.Sprintf("counter_offer_%d_%d_%d", offerID, senderID, receiverID)
}

// RoomFor returns the chat room of an accepted offer. Offers accepted
// through a counter use the counter_offer_ prefix.
func RoomFor(o *model.Offer) string {
	if o.IsCountered {
		return CounterOfferRoom(o.ID, o.SenderID, o.ReceiverID)
	}
	return OfferRoom(o.ID, o.SenderID, o.ReceiverID)
}

// UserRoom is the personal room every connection joins on connect.
func UserRoom(userID int64) string {
	return fmt.Sprintf("%d", userID)
}
