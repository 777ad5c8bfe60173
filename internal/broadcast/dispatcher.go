package broadcast

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"
)

// DefaultSendDelay is the pacing between consecutive recipients,
// to avoid destination-side rate limiting.
const DefaultSendDelay = 100 * time.Millisecond

// RecipientRenderer turns an authored message into a delivery attempt at one
// destination. Implemented by Renderer; an interface so tests can fake it.
type RecipientRenderer interface {
	Send(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error)
}

// DeliveryResult is the outcome of one recipient's delivery attempt.
type DeliveryResult struct {
	Recipient Recipient
	Err       error
}

// Report aggregates the outcome of a whole fan-out. Results are in the same
// order the recipients were processed.
type Report struct {
	Success int
	Failed  int
	Total   int
	Results []DeliveryResult
}

// Dispatcher fans an authored message out to every eligible recipient,
// tracking each outcome independently.
type Dispatcher struct {
	directory  RecipientDirectory
	records    DeliveryRecordStore
	renderer   RecipientRenderer
	accounting UsageAccounting
	sendDelay  time.Duration
}

// NewDispatcher wires a dispatcher from its collaborators.
// sendDelay < 0 selects DefaultSendDelay.
func NewDispatcher(directory RecipientDirectory, records DeliveryRecordStore, renderer RecipientRenderer, accounting UsageAccounting, sendDelay time.Duration) *Dispatcher {
	if sendDelay < 0 {
		sendDelay = DefaultSendDelay
	}
	return &Dispatcher{
		directory:  directory,
		records:    records,
		renderer:   renderer,
		accounting: accounting,
		sendDelay:  sendDelay,
	}
}

// Dispatch re-reads the eligible recipient set and delivers msg to each in
// order. One recipient's failure never blocks delivery to the rest; the error
// return is reserved for the directory lookup itself. Usage accounting is
// incremented exactly once for the whole broadcast when at least one
// recipient succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID int64, msg *AuthoredMessage) (*Report, error) {
	recipients, err := d.directory.ListEligible(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible recipients: %w", err)
	}

	report := &Report{
		Total:   len(recipients),
		Results: make([]DeliveryResult, 0, len(recipients)),
	}

	for i, recipient := range recipients {
		deliveryErr := d.deliver(ctx, ownerID, recipient, msg)
		if deliveryErr != nil {
			report.Failed++
			log.Printf("[Dispatch Owner:%d] Failed to send to %q: %v", ownerID, recipient.Title, deliveryErr)
		} else {
			report.Success++
		}
		report.Results = append(report.Results, DeliveryResult{Recipient: recipient, Err: deliveryErr})

		if d.sendDelay > 0 && i < len(recipients)-1 {
			time.Sleep(d.sendDelay)
		}
	}

	if report.Success > 0 {
		if err := d.accounting.IncrementSentCount(ctx, ownerID); err != nil {
			log.Printf("[Dispatch Owner:%d] Error incrementing usage count: %v", ownerID, err)
		}
	}

	return report, nil
}

// deliver creates the pending delivery record, renders the send, and settles
// the record to sent or failed.
func (d *Dispatcher) deliver(ctx context.Context, ownerID int64, recipient Recipient, msg *AuthoredMessage) error {
	recordID, err := d.records.Create(ctx, ownerID, recipient.ID, msg.Text, string(msg.Kind), len(msg.Media))
	if err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}

	sentID, err := d.renderer.Send(ctx, recipient.ChatID, msg)
	if err != nil {
		if markErr := d.records.MarkFailed(ctx, recordID, err.Error()); markErr != nil {
			log.Printf("[Dispatch Owner:%d] Error marking record %s failed: %v", ownerID, recordID, markErr)
		}
		return err
	}

	if markErr := d.records.MarkSent(ctx, recordID, strconv.Itoa(sentID)); markErr != nil {
		log.Printf("[Dispatch Owner:%d] Error marking record %s sent: %v", ownerID, recordID, markErr)
	}
	return nil
}
