package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/service"
)

type singleEventRequest struct {
	Recipient *mail.Recipient `json:"recipient"`
	Event     *event.Event    `json:"event"`
}

type batchEventRequest struct {
	Recipients mail.Recipients `json:"recipients"`
	Event      *event.Event    `json:"event"`
}

type alertRequest struct {
	Recipient *mail.Recipient `json:"recipient"`
	Alert     *alert.Alert    `json:"alert"`
}

// bulkAlertRequest takes recipients as a JSON array only; a lone object is
// rejected rather than wrapped.
type bulkAlertRequest struct {
	Recipients []mail.Recipient `json:"recipients"`
	Alert      *alert.Alert    `json:"alert"`
}

type receiptDetails struct {
	MessageID string `json:"messageId"`
	Recipient string `json:"recipient"`
}

func detailsOf(rcpt mail.Receipt) receiptDetails {
	return receiptDetails{MessageID: rcpt.MessageID, Recipient: rcpt.Recipient}
}

func recipientOf(r *mail.Recipient) mail.Recipient {
	if r == nil {
		return mail.Recipient{}
	}
	return *r
}

// SendEventConfirmation handles POST /api/send-event-confirmation
func (h *Handlers) SendEventConfirmation(w http.ResponseWriter, r *http.Request) {
	req, ok := readMailJSON[singleEventRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	rcpt, err := h.Mail.SendEventConfirmation(r.Context(), recipientOf(req.Recipient), req.Event)
	if err != nil {
		writeMailError(w, r, err, "Failed to send event confirmation email")
		return
	}
	writeMailOK(w, "Event confirmation email sent successfully", detailsOf(rcpt))
}

// SendEventUpdate handles POST /api/send-event-update
func (h *Handlers) SendEventUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := readMailJSON[singleEventRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	rcpt, err := h.Mail.SendEventUpdate(r.Context(), recipientOf(req.Recipient), req.Event)
	if err != nil {
		writeMailError(w, r, err, "Failed to send event update email")
		return
	}
	writeMailOK(w, "Event update email sent successfully", detailsOf(rcpt))
}

// SendEventReminder handles POST /api/send-event-reminder
func (h *Handlers) SendEventReminder(w http.ResponseWriter, r *http.Request) {
	req, ok := readMailJSON[batchEventRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Mail.SendEventReminder(r.Context(), req.Recipients, req.Event)
	if err != nil {
		writeMailError(w, r, err, "Failed to send event reminder emails")
		return
	}
	writeMailOK(w, "Event reminder emails sent: "+res.Summary(), res)
}

// SendEventCancellation handles POST /api/send-event-cancellation
func (h *Handlers) SendEventCancellation(w http.ResponseWriter, r *http.Request) {
	req, ok := readMailJSON[batchEventRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Mail.SendEventCancellation(r.Context(), req.Recipients, req.Event)
	if err != nil {
		writeMailError(w, r, err, "Failed to send event cancellation emails")
		return
	}
	writeMailOK(w, "Event cancellation emails sent: "+res.Summary(), res)
}

// SendTestEmail handles GET /api/test-email?email=
func (h *Handlers) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	rcpt, err := h.Mail.SendTestEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeMailError(w, r, err, "Failed to send test email")
		return
	}
	writeMailOK(w, "Test email sent successfully", detailsOf(rcpt))
}

// SendAlert handles POST /api/send-alert-email
func (h *Handlers) SendAlert(w http.ResponseWriter, r *http.Request) {
	req, ok := readMailJSON[alertRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	rcpt, err := h.Mail.SendAlert(r.Context(), recipientOf(req.Recipient), req.Alert)
	if err != nil {
		writeMailError(w, r, err, "Failed to send alert email")
		return
	}
	writeMailOK(w, "Alert email sent successfully", detailsOf(rcpt))
}

type testAlertDetails struct {
	MessageID string `json:"messageId"`
	Recipient string `json:"recipient"`
	AlertID   string `json:"alertId"`
}

// SendTestAlert handles GET /api/test-alert-email?email=
func (h *Handlers) SendTestAlert(w http.ResponseWriter, r *http.Request) {
	rcpt, a, err := h.Mail.SendTestAlert(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeMailError(w, r, err, "Failed to send test alert email")
		return
	}
	writeMailOK(w, "Test alert email sent successfully", testAlertDetails{
		MessageID: rcpt.MessageID,
		Recipient: rcpt.Recipient,
		AlertID:   a.ID,
	})
}

type bulkAlertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	AlertID string `json:"alertId"`
	JobID   string `json:"jobId"`
}

// SendBulkAlerts handles POST /api/send-bulk-alerts. The sends run on the
// job queue; poll GET /api/jobs/{id} for the outcome.
func (h *Handlers) SendBulkAlerts(w http.ResponseWriter, r *http.Request) {
	req, ok := readMailJSON[bulkAlertRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	j, err := h.Jobs.EnqueueBulkAlert(r.Context(), req.Recipients, req.Alert)
	if err != nil {
		writeMailError(w, r, err, "Failed to process bulk email alert request")
		return
	}
	writeJSON(w, http.StatusOK, bulkAlertResponse{
		Success: true,
		Message: fmt.Sprintf("Processing %d emails in the background", j.Total),
		AlertID: j.Reference,
		JobID:   j.ID,
	})
}

type directResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendDirect handles POST /api/send-direct
func (h *Handlers) SendDirect(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.DirectRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	rcpt, err := h.Mail.SendDirect(r.Context(), req)
	if err != nil {
		if msg, public := publicValidation(err); public {
			writeJSON(w, http.StatusBadRequest, directResponse{Error: msg})
			return
		}
		writeMailError(w, r, err, "Failed to send email")
		return
	}
	writeJSON(w, http.StatusOK, directResponse{Success: true, Message: "Email sent successfully", MessageID: rcpt.MessageID})
}

// StartDirectTest handles GET /api/direct-test?email=. The send continues
// after the response; poll /api/direct-test-status.
func (h *Handlers) StartDirectTest(w http.ResponseWriter, r *http.Request) {
	st, err := h.Mail.StartDirectTest(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeMailError(w, r, err, "Failed to process test email request")
		return
	}
	writeJSON(w, http.StatusAccepted, mailResponse{
		Success: true,
		Message: "Sending test email to " + st.Recipient,
		Details: st,
	})
}

// DirectTestStatus handles GET /api/direct-test-status?email=
func (h *Handlers) DirectTestStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, h.Mail.DirectTestStatus)
}

// EmailStatus handles GET /api/email-status?email=
func (h *Handlers) EmailStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, h.Mail.Status)
}

func (h *Handlers) writeStatus(w http.ResponseWriter, r *http.Request, lookup func(context.Context, string) (*mail.Status, error)) {
	addr := r.URL.Query().Get("email")
	if addr == "" {
		writeJSON(w, http.StatusBadRequest, mailResponse{Message: "Email parameter is required"})
		return
	}
	st, err := lookup(r.Context(), addr)
	if err != nil {
		if msg, public := publicValidation(err); public {
			writeJSON(w, http.StatusBadRequest, mailResponse{Message: msg})
			return
		}
		writeDomainError(w, err, "No email status found for "+addr)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
