package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/timeconv"
)

// DefaultSendTimeout bounds a single send to one recipient.
const DefaultSendTimeout = 15 * time.Second

// Notifier delivers messages to a single phone address.
type Notifier interface {
	Send(ctx context.Context, address, text string) error
	SendMedia(ctx context.Context, address string, file model.Attachment, caption string) error
}

// DispatchError is a failed delivery to one recipient.
type DispatchError struct {
	Address string
	File    string // empty for the text message
	Err     error
}

func (e *DispatchError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("send %s to %s: %v", e.File, e.Address, e.Err)
	}
	return fmt.Sprintf("send to %s: %v", e.Address, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Report summarizes one dispatch batch. A batch counts as sent once every
// participant was attempted, whatever the failures.
type Report struct {
	Attempted int
	Failures  []*DispatchError
}

// Delivered is the number of recipients whose text message went through.
func (r Report) Delivered() int {
	failed := make(map[string]struct{})
	for _, f := range r.Failures {
		if f.File == "" {
			failed[f.Address] = struct{}{}
		}
	}
	return r.Attempted - len(failed)
}

// Dispatcher renders meeting messages and sends them to every participant.
type Dispatcher struct {
	notifier Notifier
	conv     *timeconv.Converter
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. A zero timeout uses DefaultSendTimeout.
func NewDispatcher(n Notifier, conv *timeconv.Converter, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{notifier: n, conv: conv, timeout: timeout}
}

// Reminder sends the pre-meeting reminder and forwards attachments.
func (d *Dispatcher) Reminder(ctx context.Context, m *model.Meeting) Report {
	return d.deliver(ctx, m, d.ReminderText(m), m.Attachments)
}

// Cancellation tells participants that a meeting they were reminded of is off.
func (d *Dispatcher) Cancellation(ctx context.Context, m *model.Meeting) Report {
	return d.deliver(ctx, m, d.CancellationText(m), nil)
}

// ReminderText renders the reminder body.
func (d *Dispatcher) ReminderText(m *model.Meeting) string {
	var b strings.Builder
	b.WriteString("*PENGINGAT RAPAT*\n\n")
	d.writeDetails(&b, m)
	if len(m.Attachments) > 0 {
		fmt.Fprintf(&b, "\nLampiran: %d file menyusul.", len(m.Attachments))
	}
	b.WriteString("\nRapat akan segera dimulai. Mohon hadir tepat waktu.")
	return b.String()
}

// CancellationText renders the cancellation body.
func (d *Dispatcher) CancellationText(m *model.Meeting) string {
	var b strings.Builder
	b.WriteString("*PEMBATALAN RAPAT*\n\nRapat berikut telah DIBATALKAN:\n\n")
	d.writeDetails(&b, m)
	b.WriteString("\nAbaikan pengingat sebelumnya untuk rapat ini.")
	return b.String()
}

func (d *Dispatcher) writeDetails(b *strings.Builder, m *model.Meeting) {
	fmt.Fprintf(b, "Judul: %s\n", m.Title)
	fmt.Fprintf(b, "Ruangan: %s\n", m.Room)
	fmt.Fprintf(b, "Tanggal: %s\n", m.Date)
	fmt.Fprintf(b, "Waktu: %s\n", d.conv.FormatWindow(m.StartEpoch, m.EndEpoch))
}

// deliver walks the participants in order. Each send gets its own timeout,
// and a failure never stops the remaining recipients.
func (d *Dispatcher) deliver(ctx context.Context, m *model.Meeting, text string, files []model.Attachment) Report {
	var report Report
	for _, address := range m.Participants {
		report.Attempted++
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, &DispatchError{Address: address, Err: err})
			continue
		}

		if err := d.send(ctx, func(c context.Context) error { return d.notifier.Send(c, address, text) }); err != nil {
			log.Printf("Failed to notify %s about meeting %s: %v", address, m.ID, err)
			report.Failures = append(report.Failures, &DispatchError{Address: address, Err: err})
			continue
		}

		for _, f := range files {
			caption := fmt.Sprintf("Lampiran rapat %q: %s", m.Title, f.Name)
			file := f
			if err := d.send(ctx, func(c context.Context) error { return d.notifier.SendMedia(c, address, file, caption) }); err != nil {
				log.Printf("Failed to send attachment %s of meeting %s to %s: %v", f.Name, m.ID, address, err)
				report.Failures = append(report.Failures, &DispatchError{Address: address, File: f.Name, Err: err})
			}
		}
	}
	log.Printf("Dispatch for meeting %s finished: %d/%d recipients reached", m.ID, report.Delivered(), report.Attempted)
	return report
}

func (d *Dispatcher) send(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return fn(ctx)
}
