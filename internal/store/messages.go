package store

import (
	"strings"
	"time"
)

// InsertSentMessage records one notification attempt. Success reflects
// whether the mail service accepted the request, not SMTP delivery.
func (s *Store) InsertSentMessage(subject, body, messageType string, recipients []string, success bool) error {
	ok := 0
	if success {
		ok = 1
	}
	return s.orm.Create(&SentMessage{
		Subject:     subject,
		Body:        body,
		Timestamp:   time.Now().Format("2006-01-02 15:04:05"),
		MessageType: messageType,
		Recipient:   strings.Join(recipients, ","),
		Success:     ok,
	}).Error
}

// SentMessages returns the message log, newest first, limited when limit > 0.
func (s *Store) SentMessages(limit int) ([]SentMessage, error) {
	q := s.orm.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []SentMessage
	err := q.Find(&rows).Error
	return rows, err
}
