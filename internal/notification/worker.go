package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"hims-billing-backend/internal/billing"
	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/parse"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool records billing events on the patient's medical record and
// pushes them to the billing desks watching the bed.
type WorkerPool struct {
	size    int
	jobs    chan billing.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool with a queue of queueSize events.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan billing.Event, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			log.Printf("Worker %d processing %s for bill %s", id, ev.Type, ev.BillID)
			wp.handleEvent(ctx, ev)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Notify queues an event. It never blocks the caller: when the queue is full
// the event is dropped and logged.
func (wp *WorkerPool) Notify(ev billing.Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("Warning: event queue full, dropping %s for bill %s", ev.Type, ev.BillID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan billing.Event {
	return wp.jobs
}

func (wp *WorkerPool) handleEvent(ctx context.Context, ev billing.Event) {
	entry := model.MedicalRecordEntry{
		PatientID: ev.PatientID,
		BedID:     ev.BedID,
		BillID:    ev.BillID,
		Kind:      string(ev.Type),
		Amount:    ev.Amount,
		Note:      recordNote(ev),
		CreatedAt: ev.At,
	}
	if err := wp.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("Error recording %s for patient %d: %v", ev.Type, ev.PatientID, err)
	}

	// push is off when no VAPID keys are configured
	if ev.BedID == "" || wp.webpush == nil {
		return
	}
	wp.sendNotificationsForBed(ctx, ev)
}

func (wp *WorkerPool) sendNotificationsForBed(ctx context.Context, ev billing.Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_bed_mapping sbm ON sbm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sbm.occupancy_bed_id = ?", ev.BedID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for bed %s: %v", ev.BedID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for bed %s", len(subscriptions), ev.BedID)

	message := []byte(formatMessage(ev))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

func recordNote(ev billing.Event) string {
	if ev.Type == billing.EventBillMaterialized {
		return fmt.Sprintf("IPD bill %s opened with payment %s, %s due", ev.BillID, ev.Amount.StringFixed(2), ev.AmountDue.StringFixed(2))
	}
	return fmt.Sprintf("Payment %s on bill %s, %s due", ev.Amount.StringFixed(2), ev.BillID, ev.AmountDue.StringFixed(2))
}

func formatMessage(ev billing.Event) string {
	bed := ev.BedID
	if code, err := parse.ParseBedCode(ev.BedID); err == nil {
		bed = code.Label()
	}
	due := ev.AmountDue.StringFixed(2)
	if !ev.AmountDue.IsPositive() {
		return fmt.Sprintf("Bed %s: %s received, bill settled", bed, ev.Amount.StringFixed(2))
	}
	return fmt.Sprintf("Bed %s: %s received, %s due", bed, ev.Amount.StringFixed(2), due)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
