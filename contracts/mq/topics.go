package mq

// Queue topics. Each topic is consumed by exactly one worker.
const (
	TopicOffer                = "offer_queue"
	TopicCounterOffer         = "counter_offer_queue"
	TopicAcceptOffer          = "accept_offer_queue"
	TopicAcceptCounterOffer   = "accept_counter_offer_queue"
	TopicRejectOffer          = "reject_offer_queue"
	TopicRejectCounterOffer   = "reject_counter_offer_queue"
	TopicWithdrawCounterOffer = "delete_counter_offer_queue"
	TopicProject              = "project_worker"
	TopicSendMessage          = "send_message_queue"
	TopicMissedDeadline       = "missed_deadline"
)

// AllTopics lists every topic a worker process serves.
var AllTopics = []string{
	TopicOffer,
	TopicCounterOffer,
	TopicAcceptOffer,
	TopicAcceptCounterOffer,
	TopicRejectOffer,
	TopicRejectCounterOffer,
	TopicWithdrawCounterOffer,
	TopicProject,
	TopicSendMessage,
	TopicMissedDeadline,
}
