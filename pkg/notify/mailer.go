package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"sharehub/pkg/types"

	"go.uber.org/zap"
)

const (
	mailerWorkers   = 2
	mailerQueueSize = 64
	mailerDrainWait = 10 * time.Second
)

// Mailer delivers notifications over SMTP from a small worker pool.
// Enqueueing never blocks; when the queue is full the notification is
// dropped and logged, matching the fire-and-forget contract.
type Mailer struct {
	host   string
	port   int
	auth   smtp.Auth
	from   string
	sink   types.StatusSink
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan mailJob
	wg     sync.WaitGroup
}

type mailJob struct {
	user    types.Identity
	purpose Purpose
	files   []string
}

// NewMailer starts the worker pool. Close must be called on shutdown.
func NewMailer(host string, port int, username, password, from string, sink types.StatusSink, logger *zap.Logger) *Mailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	if from == "" {
		from = username
	}
	m := &Mailer{
		host:   host,
		port:   port,
		auth:   auth,
		from:   from,
		sink:   sink,
		logger: logger,
		jobs:   make(chan mailJob, mailerQueueSize),
	}
	for i := 0; i < mailerWorkers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Notify enqueues one notification email.
func (m *Mailer) Notify(user types.Identity, purpose Purpose, files ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.jobs <- mailJob{user: user, purpose: purpose, files: files}:
	default:
		m.logger.Warn("mail queue full, notification dropped",
			zap.String("user", user.DisplayName),
			zap.String("purpose", string(purpose)))
	}
}

// Close stops accepting notifications and waits up to 10s for in-flight
// deliveries to finish.
func (m *Mailer) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.jobs)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(mailerDrainWait):
		m.logger.Warn("mailer drain timed out")
	}
}

func (m *Mailer) worker() {
	defer m.wg.Done()
	for job := range m.jobs {
		if err := m.send(job); err != nil {
			m.sink.SetStatus("Email hasn't been sent successfully!")
			m.sink.AddLog(types.LogError,
				fmt.Sprintf("Email to %s failed: %v", job.user.DisplayName, err))
			continue
		}
		m.sink.SetStatus("Email sent to: " + job.user.DisplayName)
		m.sink.AddLog(types.LogInfo, "Email sent to: "+job.user.DisplayName)
	}
}

func (m *Mailer) send(job mailJob) error {
	subject, body := composeMessage(job.user, job.purpose, job.files)
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + job.user.Email,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	return smtp.SendMail(addr, m.auth, m.from, []string{job.user.Email}, []byte(msg))
}

func composeMessage(user types.Identity, purpose Purpose, files []string) (subject, body string) {
	switch purpose {
	case PurposeWelcome:
		subject = "Welcome to the file sharing service"
		body = fmt.Sprintf("Hello %s,\n\nYour account has been created. "+
			"You can now upload and share files with other users.\n", user.DisplayName)
	case PurposePendingFiles:
		subject = "New files are waiting for you"
		var b strings.Builder
		fmt.Fprintf(&b, "Hello %s,\n\nThe following files were shared with you "+
			"while you were offline:\n\n", user.DisplayName)
		for _, name := range files {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
		b.WriteString("\nLog in to receive them.\n")
		body = b.String()
	default:
		subject = "Notification"
		body = fmt.Sprintf("Hello %s,\n", user.DisplayName)
	}
	return subject, body
}
