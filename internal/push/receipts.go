package push

import (
	"context"

	"school-ride/internal/general/expo"
	"school-ride/internal/general/metrics"
)

// ReceiptReport is the outcome of one CheckReceipts pass.
type ReceiptReport struct {
	Delivered     int      // receipts with status ok
	FlaggedTokens []string // tokens to drop from the recipient's registered set (DeviceNotRegistered)
	Permanent     int      // non-retriable failures
	Transient     int      // failures the caller may retry later
	Unknown       int      // unrecognized provider error codes
	Pending       int      // ticket ids the provider had no receipt for yet
}

// CheckReceipts resolves the authoritative delivery outcome for
// previously returned ticket ids. Lookups are chunked; a failed chunk is
// logged and skipped, the remaining chunks still run. The dispatcher
// only flags dead tokens; removing them from the recipient's registered
// set is the directory owner's job. There is no schedule here: the
// surrounding system calls this periodically or on demand.
func (d *Dispatcher) CheckReceipts(ctx context.Context, ticketIDs []string) ReceiptReport {
	var report ReceiptReport

	for _, chunk := range chunkTokens(ticketIDs, d.receiptChunkSize) {
		receipts, err := d.provider.GetReceipts(ctx, chunk)
		if err != nil {
			d.logger.Error(ctx, "receipt_chunk_failed", "Receipt lookup failed; continuing with remaining chunks", err,
				map[string]any{"chunk_size": len(chunk)})
			continue
		}

		for _, id := range chunk {
			receipt, ok := receipts[id]
			if !ok {
				report.Pending++
				continue
			}
			d.applyReceipt(ctx, id, receipt, &report)
		}
	}

	return report
}

// applyReceipt runs the fixed policy table for one receipt.
func (d *Dispatcher) applyReceipt(ctx context.Context, ticketID string, receipt expo.Receipt, report *ReceiptReport) {
	if receipt.Status == expo.StatusOK {
		metrics.PushReceipts.WithLabelValues("delivered").Inc()
		report.Delivered++
		return
	}

	code := ""
	if receipt.Details != nil {
		code = receipt.Details.Error
	}

	switch code {
	case expo.ErrDeviceNotRegistered:
		// flag once per receipt; fall back to the ticket id when the
		// provider did not echo the token
		token := receipt.Details.ExpoPushToken
		if token == "" {
			token = ticketID
		}
		metrics.PushReceipts.WithLabelValues("device_not_registered").Inc()
		report.FlaggedTokens = append(report.FlaggedTokens, token)
		d.logger.Info(ctx, "push_token_flagged", "Device no longer registered; token flagged for removal", map[string]any{
			"ticket_id": ticketID,
			"token":     token,
		})

	case expo.ErrInvalidCredentials, expo.ErrMessageTooBig:
		metrics.PushReceipts.WithLabelValues("permanent").Inc()
		report.Permanent++
		d.logger.Error(ctx, "push_permanent_failure", "Permanent, non-retriable push failure", nil, map[string]any{
			"ticket_id": ticketID,
			"code":      code,
			"message":   receipt.Message,
		})

	case expo.ErrMessageRateExceeded:
		metrics.PushReceipts.WithLabelValues("transient").Inc()
		report.Transient++
		d.logger.Info(ctx, "push_transient_failure", "Provider rate limit hit; caller may retry later", map[string]any{
			"ticket_id": ticketID,
		})

	default:
		metrics.PushReceipts.WithLabelValues("unknown").Inc()
		report.Unknown++
		d.logger.Error(ctx, "push_unknown_receipt", "Unknown receipt error code", nil, map[string]any{
			"ticket_id": ticketID,
			"code":      code,
			"message":   receipt.Message,
		})
	}
}
