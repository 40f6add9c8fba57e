package contracts

// Relay topics. The set is closed: every topic carried on the bus is
// declared here and mapped to a fanout exchange in the rabbitmq package.
const (
	TopicDriverLocation = "location:driver"
	TopicRideNotify     = "notify:ride"
)

// Exchanges backing the relay topics. All of them are fanout: every
// instance binds its own exclusive queue, so a published message reaches
// every instance that is subscribed.
const (
	ExchangeDriverLocation = "location_driver_fanout"
	ExchangeRideNotify     = "ride_notify_fanout"
)

// WebSocket event names emitted to clients.
const (
	EventLocationUpdate = "locationUpdate"
	EventNotification   = "notification"
)

// RoomAdminPanel receives every location event regardless of recipient.
const RoomAdminPanel = "admin:panel"
