package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// The mail and messenger services are external collaborators; the sinks only
// hand the event across their HTTP boundary.

func postJSON(ctx context.Context, cli *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d from %s", resp.StatusCode, url)
	}
	return nil
}

// OperatorAlertSink tells the shop operator an order settled. Without a
// configured endpoint it degrades to a log line, which is still an alert in
// a single-operator deployment.
type OperatorAlertSink struct {
	url string
	cli *http.Client
}

func NewOperatorAlertSink(url string) *OperatorAlertSink {
	return &OperatorAlertSink{url: url, cli: &http.Client{Timeout: 10 * time.Second}}
}

func (s *OperatorAlertSink) Name() string                          { return "operator" }
func (s *OperatorAlertSink) Recipient(usecase.OrderPaidMsg) string { return "operator" }

func (s *OperatorAlertSink) Send(ctx context.Context, msg usecase.OrderPaidMsg) error {
	if s.url == "" {
		logging.FromCtx(ctx).Info("order paid", "order_id", msg.OrderID,
			"total_sats", msg.TotalSats, "method", msg.Method)
		return nil
	}
	return postJSON(ctx, s.cli, s.url, msg)
}

// BuyerEmailSink hands the paid order to the mailer service.
type BuyerEmailSink struct {
	url string
	cli *http.Client
}

func NewBuyerEmailSink(url string) *BuyerEmailSink {
	return &BuyerEmailSink{url: url, cli: &http.Client{Timeout: 10 * time.Second}}
}

func (s *BuyerEmailSink) Name() string                            { return "email" }
func (s *BuyerEmailSink) Recipient(m usecase.OrderPaidMsg) string { return m.ClientID }

func (s *BuyerEmailSink) Send(ctx context.Context, msg usecase.OrderPaidMsg) error {
	if s.url == "" {
		return nil // mailer not configured, nothing to hand off
	}
	return postJSON(ctx, s.cli, s.url, msg)
}

// BuyerMessageSink hands the paid order to the messenger bridge.
type BuyerMessageSink struct {
	url string
	cli *http.Client
}

func NewBuyerMessageSink(url string) *BuyerMessageSink {
	return &BuyerMessageSink{url: url, cli: &http.Client{Timeout: 10 * time.Second}}
}

func (s *BuyerMessageSink) Name() string                            { return "message" }
func (s *BuyerMessageSink) Recipient(m usecase.OrderPaidMsg) string { return m.ClientID }

func (s *BuyerMessageSink) Send(ctx context.Context, msg usecase.OrderPaidMsg) error {
	if s.url == "" {
		return nil
	}
	return postJSON(ctx, s.cli, s.url, msg)
}
