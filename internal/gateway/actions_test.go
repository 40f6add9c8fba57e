package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"school-ride/internal/domain/user"
	"school-ride/internal/general/contracts"
	"school-ride/internal/general/jwt"
	"school-ride/internal/general/logger"
	"school-ride/internal/ingest"
	"school-ride/internal/push"
	"school-ride/internal/router"

	"github.com/stretchr/testify/require"
)

type fakeIngestor struct {
	submitted []ingest.RawUpdate
}

func (f *fakeIngestor) Submit(_ context.Context, raw ingest.RawUpdate) error {
	f.submitted = append(f.submitted, raw)
	return nil
}

type dispatchCall struct {
	tokens []string
	title  string
}

type fakeDispatcher struct {
	calls []dispatchCall
}

func (f *fakeDispatcher) Send(_ context.Context, tokens []string, title, _ string, _ map[string]string) push.Report {
	f.calls = append(f.calls, dispatchCall{tokens: tokens, title: title})
	return push.Report{Sent: len(tokens)}
}

type fakeDirectory struct {
	online  map[string]bool
	tokens  map[int64][]string
	parents map[int64][]int64
}

func (f *fakeDirectory) TokensFor(_ context.Context, _ string, id int64) ([]string, error) {
	return f.tokens[id], nil
}

func (f *fakeDirectory) ParentsForRide(_ context.Context, rideID int64) ([]int64, error) {
	return f.parents[rideID], nil
}

func (f *fakeDirectory) SetOnline(_ context.Context, key, _ string)  { f.online[key] = true }
func (f *fakeDirectory) SetOffline(_ context.Context, key, _ string) { delete(f.online, key) }
func (f *fakeDirectory) IsOnline(_ context.Context, key string) bool { return f.online[key] }

type capturePublisher struct {
	topics   []string
	payloads [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func newTestGateway(t *testing.T, dir *fakeDirectory) (*Gateway, *fakeIngestor, *fakeDispatcher, *capturePublisher) {
	t.Helper()
	ing := &fakeIngestor{}
	disp := &fakeDispatcher{}
	pub := &capturePublisher{}
	g := New(
		logger.New("test"),
		jwt.NewManager("unit-test-secret", time.Hour),
		router.NewRooms(),
		ing, disp, dir, pub,
		"tracking-test",
	)
	return g, ing, disp, pub
}

func TestNotifyParents_PushFallbackOnlyForOfflineParents(t *testing.T) {
	dir := &fakeDirectory{
		online: map[string]bool{contracts.RoomParent(42): true},
		tokens: map[int64][]string{
			42: {"ExpoPushToken[online-parent]"},
			43: {"ExpoPushToken[offline-parent]"},
		},
	}
	g, _, disp, pub := newTestGateway(t, dir)

	g.notifyParents(context.Background(), contracts.RideNotificationMessage{
		Kind:      contracts.NotifyPickup,
		DriverID:  9,
		ChildID:   77,
		ParentIDs: []int64{42, 43},
		Title:     "Pickup confirmed",
		Body:      "On the way",
	})

	// relayed once regardless of who is online
	require.Equal(t, []string{contracts.TopicRideNotify}, pub.topics)

	var msg contracts.RideNotificationMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	require.Equal(t, []int64{42, 43}, msg.ParentIDs)
	require.NotEmpty(t, msg.CorrelationID)
	require.Equal(t, "tracking-test", msg.Producer)

	// push goes only to the offline parent, exactly once
	require.Len(t, disp.calls, 1)
	require.Equal(t, []string{"ExpoPushToken[offline-parent]"}, disp.calls[0].tokens)
}

func TestNotifyParents_OfflineParentWithoutTokensIsSkipped(t *testing.T) {
	dir := &fakeDirectory{online: map[string]bool{}, tokens: map[int64][]string{}}
	g, _, disp, pub := newTestGateway(t, dir)

	g.notifyParents(context.Background(), contracts.RideNotificationMessage{
		Kind:      contracts.NotifyPickup,
		ParentIDs: []int64{7},
		Title:     "Pickup confirmed",
	})

	require.Len(t, pub.topics, 1)
	require.Empty(t, disp.calls)
}

func TestHandlePickup_BuildsSingleParentNotification(t *testing.T) {
	dir := &fakeDirectory{online: map[string]bool{}, tokens: map[int64][]string{}}
	g, _, _, pub := newTestGateway(t, dir)

	driver := &client{id: "conn-1", userID: 9, role: user.RoleDriver}
	data, _ := json.Marshal(pickupAction{DriverID: "9", ChildID: "77", ParentSocketID: "parent:42"})

	g.handlePickup(context.Background(), driver, data)

	require.Len(t, pub.payloads, 1)
	var msg contracts.RideNotificationMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	require.Equal(t, contracts.NotifyPickup, msg.Kind)
	require.Equal(t, int64(9), msg.DriverID) // socket identity, not the payload
	require.Equal(t, int64(77), msg.ChildID)
	require.Equal(t, []int64{42}, msg.ParentIDs)
}

func TestHandlePickupAll_ResolvesRideRoster(t *testing.T) {
	dir := &fakeDirectory{
		online:  map[string]bool{},
		tokens:  map[int64][]string{},
		parents: map[int64][]int64{12: {42, 43, 44}},
	}
	g, _, _, pub := newTestGateway(t, dir)

	driver := &client{id: "conn-1", userID: 9, role: user.RoleDriver}
	data, _ := json.Marshal(pickupAllAction{DriverID: "9", RideID: "12"})

	g.handlePickupAll(context.Background(), driver, data)

	require.Len(t, pub.payloads, 1)
	var msg contracts.RideNotificationMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	require.Equal(t, contracts.NotifyPickupAll, msg.Kind)
	require.Equal(t, int64(12), msg.RideID)
	require.Equal(t, []int64{42, 43, 44}, msg.ParentIDs)
}

func TestHandlePickupAll_EmptyRosterPublishesNothing(t *testing.T) {
	dir := &fakeDirectory{online: map[string]bool{}, tokens: map[int64][]string{}, parents: map[int64][]int64{}}
	g, _, _, pub := newTestGateway(t, dir)

	driver := &client{id: "conn-1", userID: 9, role: user.RoleDriver}
	data, _ := json.Marshal(pickupAllAction{DriverID: "9", RideID: "12"})

	g.handlePickupAll(context.Background(), driver, data)

	require.Empty(t, pub.payloads)
}

func TestHandleLocation_SocketIdentityOverridesPayload(t *testing.T) {
	dir := &fakeDirectory{online: map[string]bool{}, tokens: map[int64][]string{}}
	g, ing, _, _ := newTestGateway(t, dir)

	driver := &client{id: "conn-1", userID: 9, role: user.RoleDriver}
	data := []byte(`{"driverId": 999, "latitude": 41.3, "longitude": 69.2, "timestamp": "2026-08-31T08:00:00Z"}`)

	g.handleLocation(context.Background(), driver, data)

	require.Len(t, ing.submitted, 1)
	require.Equal(t, int64(9), ing.submitted[0].DriverID)
}

func TestRoomAllowed(t *testing.T) {
	dir := &fakeDirectory{online: map[string]bool{}}
	g, _, _, _ := newTestGateway(t, dir)

	admin := &client{userID: 1, role: user.RoleAdmin}
	parent := &client{userID: 42, role: user.RoleParent}
	driver := &client{userID: 9, role: user.RoleDriver}

	require.True(t, g.roomAllowed(admin, "admin:panel"))
	require.True(t, g.roomAllowed(admin, "driver:9"))

	require.True(t, g.roomAllowed(parent, "parent:42"))
	require.True(t, g.roomAllowed(parent, "driver:9")) // watching the assigned driver
	require.False(t, g.roomAllowed(parent, "parent:43"))
	require.False(t, g.roomAllowed(parent, "admin:panel"))

	require.True(t, g.roomAllowed(driver, "driver:9"))
	require.False(t, g.roomAllowed(driver, "driver:10"))
	require.False(t, g.roomAllowed(driver, "admin:panel"))
}

func TestParseRecipientID(t *testing.T) {
	for in, want := range map[string]int64{
		"parent:42": 42,
		"42":        42,
		" parent:7": 7,
	} {
		got, err := parseRecipientID(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "parent:", "parent:-1", "driver:9", "abc"} {
		_, err := parseRecipientID(in)
		require.Error(t, err, in)
	}
}
