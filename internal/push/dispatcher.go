// Package push is the fallback delivery path for recipients with no
// live connection. Delivery degrades per token, never fails as a whole:
// the caller always gets a structured report back.
package push

import (
	"context"

	"school-ride/internal/general/expo"
	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"
)

// Provider is the outbound push API the dispatcher talks to. The expo
// client satisfies it; tests substitute their own.
type Provider interface {
	SendMessages(ctx context.Context, msgs []expo.PushMessage) ([]expo.Ticket, error)
	GetReceipts(ctx context.Context, ids []string) (map[string]expo.Receipt, error)
}

// Dispatcher batches outbound push messages within the provider's
// per-request ceiling and reconciles delivery receipts on demand.
type Dispatcher struct {
	provider         Provider
	logger           *logger.Logger
	chunkSize        int
	receiptChunkSize int
}

// Report is the outcome of one Send call.
type Report struct {
	Sent          int      // messages with an ok submit ticket
	InvalidTokens []string // tokens rejected by the grammar check
	TicketIDs     []string // ok ticket ids, for a later CheckReceipts
}

func NewDispatcher(provider Provider, log *logger.Logger, chunkSize, receiptChunkSize int) *Dispatcher {
	if chunkSize <= 0 || chunkSize > expo.MaxMessagesPerRequest {
		chunkSize = expo.MaxMessagesPerRequest
	}
	if receiptChunkSize <= 0 || receiptChunkSize > expo.MaxReceiptsPerRequest {
		receiptChunkSize = expo.MaxReceiptsPerRequest
	}
	return &Dispatcher{
		provider:         provider,
		logger:           log,
		chunkSize:        chunkSize,
		receiptChunkSize: receiptChunkSize,
	}
}

// Send pushes one notification to every syntactically valid token.
// Chunks are submitted sequentially; the serialization is the
// backpressure control against the provider's rate limit. A failed
// chunk never aborts the remaining ones.
func (d *Dispatcher) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) Report {
	var report Report

	valid := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !expo.IsPushToken(t) {
			metrics.PushInvalidTokens.Inc()
			report.InvalidTokens = append(report.InvalidTokens, t)
			d.logger.Info(ctx, "push_token_rejected", "Token failed the provider grammar check", map[string]any{
				"token": t,
			})
			continue
		}
		valid = append(valid, t)
	}

	if len(valid) == 0 {
		return report
	}

	for _, chunk := range chunkTokens(valid, d.chunkSize) {
		msg := expo.PushMessage{
			To:    chunk,
			Title: title,
			Body:  body,
			Data:  data,
			Sound: "default",
		}

		tickets, err := d.provider.SendMessages(ctx, []expo.PushMessage{msg})
		if err != nil {
			metrics.PushChunkFailures.Inc()
			d.logger.Error(ctx, "push_chunk_failed", "Chunk submission failed; continuing with remaining chunks", err,
				map[string]any{"chunk_size": len(chunk)})
			continue
		}

		for _, ticket := range tickets {
			if ticket.Status == expo.StatusOK {
				metrics.PushSent.Inc()
				report.Sent++
				report.TicketIDs = append(report.TicketIDs, ticket.ID)
				continue
			}
			d.logger.Error(ctx, "push_ticket_error", "Provider rejected a message at submit time", nil,
				map[string]any{"ticket": ticket})
		}
	}

	return report
}

// chunkTokens partitions tokens into slices of at most size elements.
func chunkTokens(tokens []string, size int) [][]string {
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for len(tokens) > size {
		chunks = append(chunks, tokens[:size])
		tokens = tokens[size:]
	}
	if len(tokens) > 0 {
		chunks = append(chunks, tokens)
	}
	return chunks
}
