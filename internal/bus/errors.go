package bus

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	ErrTopicNotFound        = errors.ErrorCode("bus_topic_not_found")
	ErrSubscriptionNotFound = errors.ErrorCode("bus_subscription_not_found")
)
