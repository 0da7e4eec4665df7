package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	appErrors "stakeoption/internal/errors"

	"github.com/shopspring/decimal"
)

const STKCallbackPath = "/api/mpesa/callback/stk"

// STKPushRequest represents M-Pesa STK Push request
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse represents M-Pesa STK Push response
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode,omitempty"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
}

type STKQueryResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode,omitempty"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
}

// STKPush asks the customer's handset to approve a payment to the paybill.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef string) (*STKPushResponse, error) {
	password, ts := Password(c.cfg.ShortCode, c.cfg.Passkey, c.now())
	payload := STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Round(0).IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.callbackURL(STKCallbackPath),
		AccountReference:  accountRef,
		TransactionDesc:   "Deposit to " + accountRef,
	}

	var res STKPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrSTKPushFailed, err)
	}
	if res.ResponseCode != "0" {
		return &res, fmt.Errorf("%w: %s", appErrors.ErrSTKPushFailed, firstNonEmpty(res.ResponseDescription, res.ErrorMessage, "rejected"))
	}
	return &res, nil
}

// STKQuery asks the provider for the state of an earlier push.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	password, ts := Password(c.cfg.ShortCode, c.cfg.Passkey, c.now())
	payload := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var res STKQueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// STKCallback is the parsed asynchronous result of a push.
type STKCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            decimal.Decimal
	Receipt           string
	Phone             string
	Raw               map[string]interface{}
}

func (cb *STKCallback) Success() bool {
	return cb.ResultCode == 0
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseSTKCallback decodes the payload Daraja posts to the STK callback URL.
func ParseSTKCallback(payload []byte) (*STKCallback, error) {
	var env stkCallbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to parse stk callback: %w", err)
	}
	cb := env.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, errors.New("stk callback missing Body.stkCallback")
	}

	out := &STKCallback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	_ = json.Unmarshal(payload, &out.Raw)

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			out.Amount = toDecimal(item.Value)
		case "MpesaReceiptNumber":
			out.Receipt = toString(item.Value)
		case "PhoneNumber":
			out.Phone = toString(item.Value)
		}
	}
	return out, nil
}
