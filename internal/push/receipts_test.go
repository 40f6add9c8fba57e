package push

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"school-ride/internal/general/expo"
	"school-ride/internal/general/logger"

	"github.com/stretchr/testify/require"
)

func TestCheckReceipts_PolicyTable(t *testing.T) {
	provider := &fakeProvider{receipts: map[string]expo.Receipt{
		"t-ok": {Status: expo.StatusOK},
		"t-gone": {Status: expo.StatusError, Details: &expo.ErrorDetails{
			Error:         expo.ErrDeviceNotRegistered,
			ExpoPushToken: "ExpoPushToken[dead-device]",
		}},
		"t-creds":    {Status: expo.StatusError, Details: &expo.ErrorDetails{Error: expo.ErrInvalidCredentials}},
		"t-too-big":  {Status: expo.StatusError, Details: &expo.ErrorDetails{Error: expo.ErrMessageTooBig}},
		"t-throttle": {Status: expo.StatusError, Details: &expo.ErrorDetails{Error: expo.ErrMessageRateExceeded}},
		"t-weird":    {Status: expo.StatusError, Details: &expo.ErrorDetails{Error: "SomethingNew"}},
	}}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.CheckReceipts(context.Background(),
		[]string{"t-ok", "t-gone", "t-creds", "t-too-big", "t-throttle", "t-weird", "t-pending"})

	require.Equal(t, 1, report.Delivered)
	require.Equal(t, []string{"ExpoPushToken[dead-device]"}, report.FlaggedTokens)
	require.Equal(t, 2, report.Permanent)
	require.Equal(t, 1, report.Transient)
	require.Equal(t, 1, report.Unknown)
	require.Equal(t, 1, report.Pending)
}

func TestCheckReceipts_FlagFallsBackToTicketID(t *testing.T) {
	// the provider does not always echo the token on a dead-device receipt
	provider := &fakeProvider{receipts: map[string]expo.Receipt{
		"t-gone": {Status: expo.StatusError, Details: &expo.ErrorDetails{Error: expo.ErrDeviceNotRegistered}},
	}}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.CheckReceipts(context.Background(), []string{"t-gone"})

	require.Equal(t, []string{"t-gone"}, report.FlaggedTokens)
}

func TestCheckReceipts_ChunksLookups(t *testing.T) {
	provider := &fakeProvider{receipts: map[string]expo.Receipt{}}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	ids := make([]string, 650)
	for i := range ids {
		ids[i] = fmt.Sprintf("t-%03d", i)
	}

	report := d.CheckReceipts(context.Background(), ids)

	require.Len(t, provider.rcCalls, 3)
	require.Len(t, provider.rcCalls[0], 300)
	require.Len(t, provider.rcCalls[1], 300)
	require.Len(t, provider.rcCalls[2], 50)
	require.Equal(t, 650, report.Pending)
}

func TestCheckReceipts_FailedChunkIsSkippedNotFatal(t *testing.T) {
	provider := &fakeProvider{rcErr: errors.New("provider unavailable")}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.CheckReceipts(context.Background(), []string{"t-1", "t-2"})

	require.Len(t, provider.rcCalls, 1)
	require.Zero(t, report.Pending) // the failed chunk produces no outcome at all
	require.Zero(t, report.Delivered)
}
