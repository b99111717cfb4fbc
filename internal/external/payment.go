package external

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/errs"
)

// PaymentClient implements order.PaymentAdapter. Payment gateway
// internals are explicitly out of scope (spec §1 Non-goals); this is
// only the call boundary charge goes through, with its own longer
// deadline (spec §5: "Payment calls have their own longer deadline").
type PaymentClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewPaymentClient(baseURL string, timeout time.Duration, log *zap.Logger) *PaymentClient {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(timeout)
	return &PaymentClient{http: client, breaker: newBreaker("payment_gateway"), log: log}
}

type chargeRequest struct {
	OrderID      string `json:"order_id"`
	PaymentToken string `json:"payment_token"`
	Amount       string `json:"amount"`
}

type chargeResponse struct {
	Reference string `json:"reference"`
	Declined  bool   `json:"declined"`
	Reason    string `json:"reason"`
}

// Charge calls the external gateway. A declined charge is surfaced as
// PaymentDeclined (not retried, per spec §7); transport failures are
// Transient, bounded by the circuit breaker.
func (c *PaymentClient) Charge(ctx context.Context, orderID, paymentToken string, amount decimal.Decimal) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body chargeResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(chargeRequest{OrderID: orderID, PaymentToken: paymentToken, Amount: amount.String()}).
			SetResult(&body).
			Post("/charges")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, errs.New(errs.KindTransient, "payment gateway returned "+resp.Status())
		}
		return body, nil
	})
	if err != nil {
		c.log.Warn("payment gateway call failed", zap.String("order_id", orderID), zap.Error(err))
		return "", errs.Transient("payment gateway unavailable", err)
	}
	body := result.(chargeResponse)
	if body.Declined {
		return "", errs.PaymentDeclined(body.Reason)
	}
	return body.Reference, nil
}
