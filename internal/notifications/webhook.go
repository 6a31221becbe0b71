package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/httputil"
	"github.com/kjannette/fiindo-etl/internal/models"
)

const (
	DefaultName = "FiindoETL"

	// maxListedErrors caps how many failed symbols a run message names.
	maxListedErrors = 5
)

type Sender struct {
	webhookURL string
	name       string
	httpClient *http.Client
	retry      httputil.RetryConfig
	logger     *zap.Logger
}

func NewSender(webhookURL, name string, logger *zap.Logger) *Sender {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("notify")
	return &Sender{
		webhookURL: webhookURL,
		name:       name,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Send posts msg to the webhook. Delivery failures are logged, never
// returned: a notification must not fail a run.
func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.name, msg)
	s.logger.Info("notification", zap.String("message", formatted))

	if s.webhookURL == "" {
		return
	}

	payload := s.formatPayload(formatted)
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal notification", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.logger.Warn("failed to send notification after retries", zap.Error(err))
		return
	}
	resp.Body.Close()
}

// RunFinished announces a completed run.
func (s *Sender) RunFinished(summary *models.RunSummary) {
	s.Send(FormatSummary(summary))
}

// RunFailed announces a run that stopped early. summary may be nil.
func (s *Sender) RunFailed(summary *models.RunSummary, err error) {
	msg := fmt.Sprintf("ETL run FAILED: %v", err)
	if summary != nil && summary.RunID != "" {
		msg = fmt.Sprintf("ETL run %s FAILED: %v", summary.RunID, err)
	}
	s.Send(msg)
}

// FormatSummary renders a run summary as a single chat message.
func FormatSummary(summary *models.RunSummary) string {
	var b strings.Builder
	b.WriteString(summary.String())

	if n := len(summary.Errors); n > 0 {
		b.WriteString(" | failed:")
		for i, e := range summary.Errors {
			if i == maxListedErrors {
				fmt.Fprintf(&b, " (+%d more)", n-maxListedErrors)
				break
			}
			fmt.Fprintf(&b, " %s(%s/%s)", e.Symbol, e.Stage, e.Kind)
		}
	}
	return b.String()
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.name,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.name,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
