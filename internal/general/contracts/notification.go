package contracts

// Notification kinds carried on TopicRideNotify.
const (
	NotifyPickup    = "pickup"
	NotifyPickupAll = "pickup_all"
)

// RideNotificationMessage is broadcast on TopicRideNotify. ParentIDs
// names every parent room the event is addressed to; the admin panel
// does not receive notification-class events.
type RideNotificationMessage struct {
	Kind      string  `json:"kind"` // NotifyPickup | NotifyPickupAll
	DriverID  int64   `json:"driverId"`
	ChildID   int64   `json:"childId,omitempty"`
	RideID    int64   `json:"rideId,omitempty"`
	ParentIDs []int64 `json:"parentIds"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Envelope
}
