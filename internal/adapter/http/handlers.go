package http

import (
	"net/http"
	"time"

	"github.com/Strob0t/Herald/internal/service"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MB

// Handlers holds the services behind the REST API.
type Handlers struct {
	Mail    *service.MailService
	Jobs    *service.JobService
	Booking *service.BookingService
	Payment *service.PaymentService // nil disables payment routes

	MaxBodyBytes int64
	Now          func() time.Time
}

func (h *Handlers) bodyLimit() int64 {
	if h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health and GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: timestamp(h.now())})
}
