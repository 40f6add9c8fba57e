package contracts

// DriverLocationMessage is broadcast on TopicDriverLocation.
// Exchange: ExchangeDriverLocation (fanout, no routing key).
type DriverLocationMessage struct {
	DriverID int64     `json:"driverId"`
	Location GeoSample `json:"location"`
	RideID   int64     `json:"rideId,omitempty"`
	Envelope
}
