package contracts

// WSEvent is the frame shape written to every live connection.
type WSEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WSLocationUpdate mirrors the locationUpdate event payload.
// TimestampMS is the epoch-millis wall clock at emission time, not the
// producer-supplied sample time (that one travels inside Location).
type WSLocationUpdate struct {
	RideID      int64     `json:"rideId,omitempty"`
	DriverID    int64     `json:"driverId"`
	Location    GeoSample `json:"location"`
	TimestampMS int64     `json:"timestamp"`
}

// WSNotification mirrors the notification event payload.
type WSNotification struct {
	Kind     string `json:"kind"`
	DriverID int64  `json:"driverId"`
	ChildID  int64  `json:"childId,omitempty"`
	RideID   int64  `json:"rideId,omitempty"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}
