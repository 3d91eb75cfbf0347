package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/events"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushPool forwards lifecycle events to browser push subscribers through a
// pool of workers. It implements events.Sink.
type PushPool struct {
	size    int
	jobs    chan events.Event
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  PushSender
}

// NewPushPool creates a new worker pool.
func NewPushPool(size, queueSize int, subs store.SubscriptionStore, webpushOptions *webpush.Options) *PushPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &PushPool{
		size:    size,
		jobs:    make(chan events.Event, queueSize),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *PushPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *PushPool) worker(ctx context.Context, id int) {
	log.Printf("Push worker %d started", id)
	for {
		select {
		case e := <-wp.jobs:
			wp.sendForEvent(ctx, e)
		case <-ctx.Done():
			log.Printf("Push worker %d shutting down", id)
			return
		}
	}
}

// Emit queues an event. A full queue drops the event rather than block the
// scheduler or the sweeper.
func (wp *PushPool) Emit(e events.Event) {
	select {
	case wp.jobs <- e:
	default:
		log.Printf("Push queue full; dropping %s event for meeting %s", e.Status, e.MeetingID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *PushPool) Jobs() chan events.Event {
	return wp.jobs
}

// sendForEvent pushes e to every subscription following its room.
func (wp *PushPool) sendForEvent(ctx context.Context, e events.Event) {
	subscriptions, err := wp.subs.ListSubscriptions(ctx)
	if err != nil {
		log.Printf("Error fetching subscriptions for meeting %s: %v", e.MeetingID, err)
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("Error encoding push payload for meeting %s: %v", e.MeetingID, err)
		return
	}

	for _, sub := range subscriptions {
		if !sub.Follows(e.Room) {
			continue
		}
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *PushPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending push notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
