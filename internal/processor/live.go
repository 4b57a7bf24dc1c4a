package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

const defaultLiveBaseURL = "https://api.payproc.example.com/v1"

// LiveClient talks to the real processor API. Requests are form encoded and
// authenticated with a bearer API key, responses are JSON.
type LiveClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// LiveOption configures a LiveClient.
type LiveOption func(*LiveClient)

// WithBaseURL overrides the API base URL. Used against sandbox environments.
func WithBaseURL(u string) LiveOption {
	return func(c *LiveClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) LiveOption {
	return func(c *LiveClient) { c.httpClient = hc }
}

// NewLiveClient creates a client for the processor's REST API.
func NewLiveClient(apiKey string, timeout time.Duration, opts ...LiveOption) *LiveClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &LiveClient{
		baseURL: defaultLiveBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	MethodRef    string            `json:"payment_method"`
	DeclineCode  string            `json:"decline_code"`
	Metadata     map[string]string `json:"metadata"`
}

type apiMethod struct {
	ID   string `json:"id"`
	Card struct {
		Brand       string `json:"brand"`
		Last4       string `json:"last4"`
		ExpMonth    int    `json:"exp_month"`
		ExpYear     int    `json:"exp_year"`
		Fingerprint string `json:"fingerprint"`
	} `json:"card"`
}

type apiError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
	} `json:"error"`
}

func (c *LiveClient) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("email", email)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *LiveClient) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", "usd")
	form.Set("customer", params.CustomerRef)
	if params.MethodRef != "" {
		form.Set("payment_method", params.MethodRef)
	}
	if params.OffSession {
		form.Set("off_session", "true")
	}
	if params.SetupFutureUse {
		form.Set("setup_future_usage", "off_session")
	}
	form.Set("metadata[invoice_id]", params.Metadata.InvoiceID.String())
	form.Set("metadata[customer_id]", params.Metadata.CustomerID.String())
	form.Set("metadata[payment_type]", params.Metadata.PaymentType)

	var out apiIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &out); err != nil {
		return nil, err
	}
	return toIntent(&out), nil
}

func (c *LiveClient) ConfirmOffSession(ctx context.Context, intentRef string) (*Intent, error) {
	form := url.Values{}
	form.Set("off_session", "true")

	var out apiIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents/"+intentRef+"/confirm", form, &out); err != nil {
		return nil, err
	}
	return toIntent(&out), nil
}

func (c *LiveClient) RetrieveIntent(ctx context.Context, intentRef string) (*Intent, error) {
	var out apiIntent
	if err := c.do(ctx, http.MethodGet, "/payment_intents/"+intentRef, nil, &out); err != nil {
		return nil, err
	}
	return toIntent(&out), nil
}

func (c *LiveClient) RetrievePaymentMethod(ctx context.Context, methodRef string) (*PaymentMethod, error) {
	var out apiMethod
	if err := c.do(ctx, http.MethodGet, "/payment_methods/"+methodRef, nil, &out); err != nil {
		return nil, err
	}
	return &PaymentMethod{
		Ref:         out.ID,
		Brand:       out.Card.Brand,
		Last4:       out.Card.Last4,
		ExpMonth:    out.Card.ExpMonth,
		ExpYear:     out.Card.ExpYear,
		Fingerprint: out.Card.Fingerprint,
	}, nil
}

func (c *LiveClient) do(ctx context.Context, method, path string, form url.Values, dst any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building processor request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewDomainError("processor_unreachable", "processor request failed", errors.ErrProcessorUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.NewDomainError("processor_bad_response", "could not read processor response", errors.ErrProcessorUnavailable)
	}

	if resp.StatusCode >= 400 {
		return c.mapAPIError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewDomainError("processor_bad_response", "processor response is not valid JSON", errors.ErrProcessorUnavailable)
	}
	return nil
}

func (c *LiveClient) mapAPIError(status int, raw []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)

	if status == http.StatusPaymentRequired || apiErr.Error.Type == "card_error" {
		code := apiErr.Error.DeclineCode
		if code == "" {
			code = apiErr.Error.Code
		}
		return errors.MapDeclineCode(code)
	}
	if status >= 500 || status == http.StatusTooManyRequests {
		return errors.NewDomainError("processor_unavailable",
			fmt.Sprintf("processor returned %d", status), errors.ErrProcessorUnavailable)
	}
	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("processor rejected the request with %d", status)
	}
	return errors.NewDomainError("processor_rejected", msg, errors.ErrInvalidInput)
}

func toIntent(in *apiIntent) *Intent {
	intent := &Intent{
		Ref:          in.ID,
		ClientSecret: in.ClientSecret,
		Status:       IntentStatus(in.Status),
		AmountCents:  in.Amount,
		MethodRef:    in.MethodRef,
		DeclineCode:  in.DeclineCode,
	}
	if in.Metadata != nil {
		intent.Metadata.PaymentType = in.Metadata["payment_type"]
		if id, err := uuid.Parse(in.Metadata["invoice_id"]); err == nil {
			intent.Metadata.InvoiceID = id
		}
		if id, err := uuid.Parse(in.Metadata["customer_id"]); err == nil {
			intent.Metadata.CustomerID = id
		}
	}
	return intent
}
