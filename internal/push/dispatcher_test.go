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

type fakeProvider struct {
	calls    [][]string // token batches, one entry per SendMessages call
	failCall int        // 1-based call index to fail; 0 never fails
	receipts map[string]expo.Receipt
	rcErr    error
	rcCalls  [][]string // id batches, one entry per GetReceipts call
}

func (p *fakeProvider) SendMessages(_ context.Context, msgs []expo.PushMessage) ([]expo.Ticket, error) {
	call := len(p.calls) + 1
	var tokens []string
	for _, m := range msgs {
		tokens = append(tokens, m.To...)
	}
	p.calls = append(p.calls, tokens)

	if p.failCall == call {
		return nil, errors.New("provider unavailable")
	}

	tickets := make([]expo.Ticket, 0, len(tokens))
	for i := range tokens {
		tickets = append(tickets, expo.Ticket{Status: expo.StatusOK, ID: fmt.Sprintf("ticket-%d-%d", call, i)})
	}
	return tickets, nil
}

func (p *fakeProvider) GetReceipts(_ context.Context, ids []string) (map[string]expo.Receipt, error) {
	p.rcCalls = append(p.rcCalls, ids)
	if p.rcErr != nil {
		return nil, p.rcErr
	}
	return p.receipts, nil
}

func expoTokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("ExpoPushToken[device-%03d]", i)
	}
	return out
}

func TestSend_FiltersInvalidTokensUpFront(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	tokens := []string{
		"ExpoPushToken[good-1]",
		"not-a-token",
		"ExponentPushToken[good-2]", // historical spelling is valid
		"ExpoPushToken[bad[nested]",
		"",
	}

	report := d.Send(context.Background(), tokens, "Title", "Body", nil)

	require.Equal(t, 2, report.Sent)
	require.Equal(t, []string{"not-a-token", "ExpoPushToken[bad[nested]", ""}, report.InvalidTokens)
	require.Len(t, report.TicketIDs, 2)
	require.Len(t, provider.calls, 1)
	require.Equal(t, []string{"ExpoPushToken[good-1]", "ExponentPushToken[good-2]"}, provider.calls[0])
}

func TestSend_NothingValidMeansNoProviderCall(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.Send(context.Background(), []string{"junk", "more junk"}, "T", "B", nil)

	require.Zero(t, report.Sent)
	require.Len(t, report.InvalidTokens, 2)
	require.Empty(t, provider.calls)
}

func TestSend_ChunksSequentiallyWithinProviderCeiling(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.Send(context.Background(), expoTokens(250), "T", "B", nil)

	require.Len(t, provider.calls, 3)
	require.Len(t, provider.calls[0], 100)
	require.Len(t, provider.calls[1], 100)
	require.Len(t, provider.calls[2], 50)
	require.Equal(t, 250, report.Sent)
}

func TestSend_FailedChunkDoesNotAbortTheRest(t *testing.T) {
	provider := &fakeProvider{failCall: 2}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.Send(context.Background(), expoTokens(250), "T", "B", nil)

	require.Len(t, provider.calls, 3)
	require.Equal(t, 150, report.Sent) // chunks 1 and 3 only
	require.Len(t, report.TicketIDs, 150)
}

func TestSend_ErrorTicketsAreNotCountedAsSent(t *testing.T) {
	provider := &errorTicketProvider{}
	d := NewDispatcher(provider, logger.New("test"), 100, 300)

	report := d.Send(context.Background(), expoTokens(2), "T", "B", nil)

	require.Equal(t, 1, report.Sent)
	require.Equal(t, []string{"ok-ticket"}, report.TicketIDs)
}

// errorTicketProvider returns one ok ticket and one submit-time error.
type errorTicketProvider struct{}

func (p *errorTicketProvider) SendMessages(context.Context, []expo.PushMessage) ([]expo.Ticket, error) {
	return []expo.Ticket{
		{Status: expo.StatusOK, ID: "ok-ticket"},
		{Status: expo.StatusError, Message: "device cannot receive", Details: &expo.ErrorDetails{Error: expo.ErrDeviceNotRegistered}},
	}, nil
}

func (p *errorTicketProvider) GetReceipts(context.Context, []string) (map[string]expo.Receipt, error) {
	return nil, nil
}

func TestNewDispatcher_ClampsChunkSizesToProviderCeilings(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, logger.New("test"), 10_000, -5)

	require.Equal(t, expo.MaxMessagesPerRequest, d.chunkSize)
	require.Equal(t, expo.MaxReceiptsPerRequest, d.receiptChunkSize)
}
