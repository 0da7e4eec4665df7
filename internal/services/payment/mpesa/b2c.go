package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	appErrors "stakeoption/internal/errors"

	"github.com/shopspring/decimal"
)

const (
	B2CResultPath  = "/api/mpesa/callback/b2c/result"
	B2CTimeoutPath = "/api/mpesa/callback/b2c/timeout"
)

// B2CRequest represents M-Pesa B2C request
type B2CRequest struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	InitiatorName            string `json:"InitiatorName"`
	SecurityCredential       string `json:"SecurityCredential"`
	CommandID                string `json:"CommandID"`
	Amount                   int64  `json:"Amount"`
	PartyA                   string `json:"PartyA"`
	PartyB                   string `json:"PartyB"`
	Remarks                  string `json:"Remarks"`
	QueueTimeOutURL          string `json:"QueueTimeOutURL"`
	ResultURL                string `json:"ResultURL"`
	Occasion                 string `json:"Occasion"`
}

// B2CResponse represents M-Pesa B2C response
type B2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
	ErrorCode                string `json:"errorCode,omitempty"`
	ErrorMessage             string `json:"errorMessage,omitempty"`
}

// B2C sends a payout to phone. originatorID is our request id and comes back
// on the result callback.
func (c *Client) B2C(ctx context.Context, originatorID, phone string, amount decimal.Decimal) (*B2CResponse, error) {
	payload := B2CRequest{
		OriginatorConversationID: originatorID,
		InitiatorName:            c.cfg.InitiatorName,
		SecurityCredential:       c.cfg.SecurityCredential,
		CommandID:                "BusinessPayment",
		Amount:                   amount.Round(0).IntPart(),
		PartyA:                   c.cfg.B2CShortCode,
		PartyB:                   phone,
		Remarks:                  "StakeOption Withdrawal",
		QueueTimeOutURL:          c.callbackURL(B2CTimeoutPath),
		ResultURL:                c.callbackURL(B2CResultPath),
		Occasion:                 "Withdrawal",
	}

	var res B2CResponse
	if err := c.post(ctx, "/mpesa/b2c/v3/paymentrequest", payload, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrB2CFailed, err)
	}
	if res.ResponseCode != "0" {
		return &res, fmt.Errorf("%w: %s", appErrors.ErrB2CFailed, firstNonEmpty(res.ResponseDescription, res.ErrorMessage, "rejected"))
	}
	return &res, nil
}

// B2CResult is the parsed result or timeout notification for a payout.
type B2CResult struct {
	ConversationID           string
	OriginatorConversationID string
	TransactionID            string
	ResultCode               int
	ResultDesc               string
	Receipt                  string
	Amount                   decimal.Decimal
	Raw                      map[string]interface{}
}

func (r *B2CResult) Success() bool {
	return r.ResultCode == 0
}

type b2cEnvelope struct {
	Result *struct {
		ResultType               int             `json:"ResultType"`
		ResultCode               json.RawMessage `json:"ResultCode"`
		ResultDesc               string          `json:"ResultDesc"`
		OriginatorConversationID string          `json:"OriginatorConversationID"`
		ConversationID           string          `json:"ConversationID"`
		TransactionID            string          `json:"TransactionID"`
		ResultParameters         struct {
			ResultParameter []struct {
				Key   string      `json:"Key"`
				Value interface{} `json:"Value"`
			} `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

// ParseB2CResult decodes the payload posted to the result or timeout URL.
func ParseB2CResult(payload []byte) (*B2CResult, error) {
	var env b2cEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to parse b2c callback: %w", err)
	}
	r := env.Result
	if r == nil || (r.ConversationID == "" && r.OriginatorConversationID == "") {
		return nil, errors.New("b2c callback missing Result")
	}

	out := &B2CResult{
		ConversationID:           r.ConversationID,
		OriginatorConversationID: r.OriginatorConversationID,
		TransactionID:            r.TransactionID,
		ResultCode:               parseResultCode(r.ResultCode),
		ResultDesc:               r.ResultDesc,
		Receipt:                  r.TransactionID,
	}
	_ = json.Unmarshal(payload, &out.Raw)

	for _, p := range r.ResultParameters.ResultParameter {
		switch p.Key {
		case "TransactionReceipt":
			if s := toString(p.Value); s != "" {
				out.Receipt = s
			}
		case "TransactionAmount":
			out.Amount = toDecimal(p.Value)
		}
	}
	return out, nil
}

// parseResultCode accepts both 0 and "0"; anything unreadable counts as failure.
func parseResultCode(raw json.RawMessage) int {
	if len(raw) == 0 {
		return -1
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return -1
}
