// Package scheduler runs the portal's periodic jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"bastportal/internal/service"

	"github.com/robfig/cron/v3"
)

const reminderTimeout = 2 * time.Minute

// DueReminder is the push payload of one unpaid invoice at or past its due date.
type DueReminder struct {
	ID            string `json:"id"`
	NomorInvoice  string `json:"nomor_invoice"`
	VendorID      string `json:"vendor_id"`
	PicEmail      string `json:"pic_email,omitempty"`
	TimeRemaining string `json:"time_remaining"`
	DaysRemaining int    `json:"days_remaining"`
}

// ReminderJob sweeps unpaid invoices that are overdue or due today.
type ReminderJob struct {
	invoices service.InvoiceService
	notifier service.Notifier
}

func NewReminderJob(invoices service.InvoiceService, notifier service.Notifier) *ReminderJob {
	return &ReminderJob{invoices: invoices, notifier: notifier}
}

// Run logs every due invoice and publishes one reminder for each. It returns
// the number of reminders sent.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	due, err := j.invoices.DueReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list due invoices: %w", err)
	}
	for _, v := range due {
		log.Printf("[CRON] invoice %s (%s) %s, pic=%q", v.NomorInvoice, v.ID, v.TimeRemaining, v.PicEmail)
		j.notifier.Publish(service.TopicInvoiceReminder, DueReminder{
			ID:            v.ID.String(),
			NomorInvoice:  v.NomorInvoice,
			VendorID:      v.VendorID.String(),
			PicEmail:      v.PicEmail,
			TimeRemaining: v.TimeRemaining,
			DaysRemaining: v.DaysRemaining,
		})
	}
	return len(due), nil
}

// Start schedules job on spec and starts the cron runner. An empty spec
// disables the job and returns nil.
func Start(spec string, job *ReminderJob) (*cron.Cron, error) {
	if spec == "" {
		log.Println("[CRON] reminder schedule empty, job disabled")
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
		defer cancel()
		n, err := job.Run(ctx)
		if err != nil {
			log.Printf("[CRON] reminder error: %v", err)
			return
		}
		log.Printf("[CRON] reminder sweep sent %d reminder(s)", n)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	log.Printf("[CRON] started reminder schedule=%q", spec)
	c.Start()
	return c, nil
}
