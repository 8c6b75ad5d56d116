package notify

import (
	"strings"

	"go.uber.org/zap"

	"grdmonitor/internal/bus"
	"grdmonitor/internal/metrics"
)

// Enqueuer is the mail collaborator.
type Enqueuer interface {
	Enqueue(recipients []string, subject, body, messageType string) (bool, string)
}

// MessageLog persists notification attempts.
type MessageLog interface {
	InsertSentMessage(subject, body, messageType string, recipients []string, success bool) error
}

// Dispatcher fires a notification exactly once per sustained alarm
// transition: it enqueues the email, records the attempt (accepted or not)
// in the message log, and announces the outcome on the event bus.
type Dispatcher struct {
	mail          Enqueuer
	msgLog        MessageLog
	bus           *bus.Bus
	recipients    []string
	subjectPrefix string
	log           *zap.SugaredLogger
}

// NewDispatcher builds a dispatcher. bus may be nil.
func NewDispatcher(mail Enqueuer, msgLog MessageLog, b *bus.Bus, recipients []string, subjectPrefix string, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		mail:          mail,
		msgLog:        msgLog,
		bus:           b,
		recipients:    recipients,
		subjectPrefix: subjectPrefix,
		log:           log.Named("ALRM/EXP"),
	}
}

// Dispatch delivers one fired alarm. Delivery is fire-and-forget: "accepted"
// means the mail queue took the request. The message log always gets exactly
// one row regardless of outcome, and the bus publication is best-effort.
func (d *Dispatcher) Dispatch(category, subject, body string) {
	metrics.AlarmsFired.WithLabelValues(category).Inc()

	accepted, detail := d.mail.Enqueue(d.recipients, d.subjectPrefix+subject, body, "alarm_event")
	if accepted {
		metrics.MailAccepted.WithLabelValues("accepted").Inc()
		d.log.Infof("ALARM FIRED: %s. Request accepted by mail queue. Recipients: %s",
			subject, strings.Join(d.recipients, ", "))
	} else {
		metrics.MailAccepted.WithLabelValues("rejected").Inc()
		d.log.Errorf("mail queue did not accept request for %q: %s", subject, detail)
	}

	if err := d.msgLog.InsertSentMessage(subject, body, "alarm_event", d.recipients, accepted); err != nil {
		d.log.Errorf("record sent message %q: %v", subject, err)
	}

	d.bus.PublishEmailEvent(subject, accepted)
}
