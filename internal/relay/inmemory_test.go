package relay

import (
	"context"
	"testing"

	"school-ride/internal/general/contracts"

	"github.com/stretchr/testify/require"
)

func TestInMemory_BroadcastReachesEverySubscriber(t *testing.T) {
	r := NewInMemory()
	ctx := context.Background()

	var got [3][]string
	for i := range got {
		i := i
		_, err := r.Subscribe(ctx, contracts.TopicDriverLocation, func(_ context.Context, payload []byte) {
			got[i] = append(got[i], string(payload))
		})
		require.NoError(t, err)
	}

	require.NoError(t, r.Publish(ctx, contracts.TopicDriverLocation, []byte("a")))
	require.NoError(t, r.Publish(ctx, contracts.TopicDriverLocation, []byte("b")))

	for i := range got {
		require.Equal(t, []string{"a", "b"}, got[i])
	}
}

func TestInMemory_TopicsAreIsolated(t *testing.T) {
	r := NewInMemory()
	ctx := context.Background()

	var locations, notifications int
	_, err := r.Subscribe(ctx, contracts.TopicDriverLocation, func(context.Context, []byte) { locations++ })
	require.NoError(t, err)
	_, err = r.Subscribe(ctx, contracts.TopicRideNotify, func(context.Context, []byte) { notifications++ })
	require.NoError(t, err)

	require.NoError(t, r.Publish(ctx, contracts.TopicDriverLocation, []byte("x")))

	require.Equal(t, 1, locations)
	require.Equal(t, 0, notifications)
}

func TestInMemory_UnknownTopicRejected(t *testing.T) {
	r := NewInMemory()
	ctx := context.Background()

	err := r.Publish(ctx, "made:up", []byte("x"))
	require.ErrorIs(t, err, ErrUnknownTopic)

	_, err = r.Subscribe(ctx, "made:up", func(context.Context, []byte) {})
	require.ErrorIs(t, err, ErrUnknownTopic)
}

func TestInMemory_CloseStopsDelivery(t *testing.T) {
	r := NewInMemory()
	ctx := context.Background()

	var count int
	sub, err := r.Subscribe(ctx, contracts.TopicRideNotify, func(context.Context, []byte) { count++ })
	require.NoError(t, err)

	require.NoError(t, r.Publish(ctx, contracts.TopicRideNotify, []byte("x")))
	sub.Close()
	require.NoError(t, r.Publish(ctx, contracts.TopicRideNotify, []byte("y")))

	require.Equal(t, 1, count)
}
