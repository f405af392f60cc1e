package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/obs"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`<h1>Air593 booking confirmed</h1>
<p>Hello {{.HolderName}}, your payment was received.</p>
<p>Order <strong>{{.OrderID}}</strong> placed {{.Timestamp.Format "2006-01-02 15:04 MST"}}.</p>
<table>
{{- range .Items}}
<tr><td>{{.Destination}}</td><td>{{.Price.StringFixed 2}}</td></tr>
{{- end}}
</table>
{{- if not .Discount.IsZero}}
<p>Discount: -{{.Discount.StringFixed 2}}</p>
{{- end}}
<p>Total paid: {{.Total.StringFixed 2}}</p>
`))

// ReceiptHandler sends receipt emails from queued tasks.
type ReceiptHandler struct {
	Mail   common.EmailSender
	Logger zerolog.Logger
}

// Register attaches the handler to mux.
func (h ReceiptHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskReceiptEmail, h.ProcessTask)
}

// ProcessTask implements asynq.Handler. Payloads that cannot be decoded are
// not retried.
func (h ReceiptHandler) ProcessTask(_ context.Context, t *asynq.Task) error {
	var receipt Receipt
	if err := json.Unmarshal(t.Payload(), &receipt); err != nil {
		obs.Inc(obs.ReceiptsSentTotal, "invalid")
		return fmt.Errorf("decode receipt: %v: %w", err, asynq.SkipRetry)
	}
	to := strings.TrimSpace(receipt.Email)
	if to == "" {
		obs.Inc(obs.ReceiptsSentTotal, "invalid")
		return fmt.Errorf("receipt %s has no recipient: %w", receipt.OrderID, asynq.SkipRetry)
	}
	body, err := RenderReceipt(receipt)
	if err != nil {
		obs.Inc(obs.ReceiptsSentTotal, "invalid")
		return fmt.Errorf("render receipt: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.Mail.Send(to, "Your Air593 booking "+receipt.OrderID, body); err != nil {
		obs.Inc(obs.ReceiptsSentTotal, "error")
		return fmt.Errorf("send receipt: %w", err)
	}
	obs.Inc(obs.ReceiptsSentTotal, "sent")
	h.Logger.Info().Str("order_id", receipt.OrderID).Msg("receipt sent")
	return nil
}

// RenderReceipt renders the HTML body of a receipt email.
func RenderReceipt(r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
