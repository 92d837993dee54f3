package console

import (
	"bytes"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rosterd/console/identity"
	"github.com/sirupsen/logrus"
)

// Mailer posts notification mail to the outbound mail gateway. Dispatch is
// decoupled from the mutation that triggered it: handlers fire it on a
// goroutine and report the mutation outcome regardless of delivery.
type Mailer struct {
	Config identity.Config
	Logger *logrus.Logger
}

// Email is one outbound message.
type Email struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send delivers one message to the mail gateway. A missing gateway is a
// no-op so local setups work without one.
func (m *Mailer) Send(email Email) {
	if m.Config.MailGateway == "" {
		return
	}
	if email.From == "" {
		email.From = m.Config.MailSender
	}
	payload, err := json.Marshal(email)
	if err != nil {
		m.Logger.WithField("error", err.Error()).Error("mail payload marshal failed")
		return
	}
	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(m.Config.MailGateway, "application/json", bytes.NewReader(payload))
	if err != nil {
		m.Logger.WithFields(logrus.Fields{
			"to":    email.To,
			"error": err.Error(),
		}).Error("mail dispatch failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		m.Logger.WithFields(logrus.Fields{
			"to":     email.To,
			"status": resp.StatusCode,
		}).Error("mail gateway rejected message")
		return
	}
	m.Logger.WithField("to", email.To).Info("mail dispatched")
}
