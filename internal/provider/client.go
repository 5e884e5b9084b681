package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/prom"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

var (
	// ErrNotFound means the provider does not know the ref yet. Pollers
	// log and try again next tick; this is not a transient failure.
	ErrNotFound = errors.New("provider: not found")
)

type Config struct {
	OrderBaseURL    string
	MandateBaseURL  string
	PaymentBaseURL  string
	KycBaseURL      string
	Timeout         time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client talks to the order/mandate/payment/KYC provider APIs. Calls are
// blocking with a request deadline; transient failures are retried with
// fibonacci backoff before the poller sees an error.
type Client struct {
	config *Config
	http   *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 100 * time.Millisecond
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      config.ReadBufferSize,
		WriteBufferSize:     config.WriteBufferSize,
	}

	logger.Info("provider client initialized",
		"order_url", config.OrderBaseURL,
		"mandate_url", config.MandateBaseURL,
		"payment_url", config.PaymentBaseURL,
		"timeout", config.Timeout)

	return &Client{config: config, http: httpClient}, nil
}

// FetchOrderDetails returns the provider's current view of an order ref.
func (c *Client) FetchOrderDetails(ctx context.Context, ref string) (*OrderDetails, error) {
	var details OrderDetails
	path := fmt.Sprintf("%s/api/v1/orders/%s", c.config.OrderBaseURL, ref)
	if err := c.getJSON(ctx, "orders.get", path, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// SubmitOrder hands one line item to the provider and returns its view
// of the fresh submission. Submitting a ref the provider already knows
// returns the existing order unchanged.
func (c *Client) SubmitOrder(ctx context.Context, sub OrderSubmission) (*OrderDetails, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order submission: %w", err)
	}

	var details OrderDetails
	path := fmt.Sprintf("%s/api/v1/orders", c.config.OrderBaseURL)
	if err := c.postJSON(ctx, "orders.submit", path, body, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// FetchMandate returns the mandate's current approval state.
func (c *Client) FetchMandate(ctx context.Context, id string) (*Mandate, error) {
	var mandate Mandate
	path := fmt.Sprintf("%s/api/v1/mandates/%s", c.config.MandateBaseURL, id)
	if err := c.getJSON(ctx, "mandates.get", path, &mandate); err != nil {
		return nil, err
	}
	return &mandate, nil
}

// FetchPayment returns the payment's current state.
func (c *Client) FetchPayment(ctx context.Context, ref string) (*PaymentDetails, error) {
	var payment PaymentDetails
	path := fmt.Sprintf("%s/api/v1/payments/%s", c.config.PaymentBaseURL, ref)
	if err := c.getJSON(ctx, "payments.get", path, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FetchKycStatus returns the user's verification state.
func (c *Client) FetchKycStatus(ctx context.Context, userID int64) (*KycDetails, error) {
	var details KycDetails
	path := fmt.Sprintf("%s/api/v1/kyc/%d", c.config.KycBaseURL, userID)
	if err := c.getJSON(ctx, "kyc.get", path, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, url string, out interface{}) error {
	backoff := retry.WithMaxRetries(uint64(c.config.MaxRetries), retry.NewFibonacci(c.config.RetryBaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, fasthttp.MethodGet, endpoint, url, nil)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Known-absent is final for this tick; retrying the HTTP
				// call will not make the ref appear.
				return err
			}
			logger.Warn("provider request failed, will retry", "url", url, "error", err)
			return retry.RetryableError(err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to unmarshal provider response: %w", err)
		}
		return nil
	})
}

func (c *Client) postJSON(ctx context.Context, endpoint, url string, payload []byte, out interface{}) error {
	// Submissions are not blindly retried; a dropped response would turn a
	// retry into a duplicate submission if the provider is not keyed by ref.
	body, err := c.doRequest(ctx, fasthttp.MethodPost, endpoint, url, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal provider response: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint, url string, payload []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		prom.ObserveProviderRequest(endpoint, time.Since(start))
	}()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if payload != nil {
		req.SetBody(payload)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode == fasthttp.StatusNotFound {
		return nil, ErrNotFound
	}
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusCreated && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}
