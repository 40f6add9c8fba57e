package rabbitmq

import (
	"fmt"

	"school-ride/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology declares the fanout exchanges backing the relay
// topics. Queues are not declared here: every subscribing instance binds
// its own exclusive, auto-delete queue at subscribe time, which is what
// turns the exchange into a broadcast channel across instances.
func declareTopology(ch *amqp.Channel) error {
	exchanges := []string{
		contracts.ExchangeDriverLocation,
		contracts.ExchangeRideNotify,
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex, "fanout", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}
