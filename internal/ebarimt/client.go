// Package ebarimt integrates with the Mongolian tax authority's e-receipt
// service. Bill creation is idempotent per invoice id on the provider side.
package ebarimt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cargopay/internal/invoice"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
}

type createBillRequest struct {
	InvoiceID string `json:"invoiceId"`
	Amount    string `json:"amount"`
	Vat       string `json:"vat"`
}

type createBillResponse struct {
	BillID  string `json:"billId"`
	Lottery string `json:"lottery"`
	QRData  string `json:"qrData"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) CreateBill(ctx context.Context, invoiceID uuid.UUID, amount, vat decimal.Decimal) (*invoice.Bill, error) {
	payload := createBillRequest{
		InvoiceID: invoiceID.String(),
		Amount:    amount.StringFixed(2),
		Vat:       vat.StringFixed(2),
	}

	var out createBillResponse
	if err := c.post(ctx, "/rest/receipt", payload, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, pkgerrors.ExternalService("EBARIMT_REJECTED", out.Message, nil)
	}

	return &invoice.Bill{
		BillID:  out.BillID,
		Lottery: out.Lottery,
		QRData:  out.QRData,
	}, nil
}

func (c *Client) RevokeBill(ctx context.Context, invoiceID uuid.UUID) error {
	payload := map[string]string{"invoiceId": invoiceID.String()}
	var out createBillResponse
	if err := c.post(ctx, "/rest/receipt/revoke", payload, &out); err != nil {
		return err
	}
	if !out.Success {
		return pkgerrors.ExternalService("EBARIMT_REJECTED", out.Message, nil)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode ebarimt request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build ebarimt request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.ExternalService("EBARIMT_UNREACHABLE", "failed to reach ebarimt service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return pkgerrors.ExternalService("EBARIMT_UNAVAILABLE", fmt.Sprintf("ebarimt returned status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return pkgerrors.ExternalService("EBARIMT_REJECTED", fmt.Sprintf("ebarimt returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.ExternalService("EBARIMT_BAD_RESPONSE", "failed to decode ebarimt response", err)
	}
	return nil
}

// Stub stands in for the tax service in development and tests.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) CreateBill(_ context.Context, invoiceID uuid.UUID, _, _ decimal.Decimal) (*invoice.Bill, error) {
	return &invoice.Bill{
		BillID:  "STUB-" + invoiceID.String()[:8],
		Lottery: "ST 00000000",
		QRData:  "stub-qr-" + invoiceID.String(),
	}, nil
}

func (s *Stub) RevokeBill(context.Context, uuid.UUID) error { return nil }
