package common

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	uriScheme = "bitcoin"

	amountParam   = "amount"
	endpointParam = "pj"
	modeParam     = "pjmode"

	ModeDirect = "direct"
	ModeRelay  = "relay"
)

// PaymentRequest is the out-of-band payload a receiver shares with a
// sender: where to pay, how much, and which exchange endpoint to use.
// Its encoded form is a BIP21-style URI:
//
//	bitcoin:<address>?amount=<btc>&pj=<url>[&pjmode=relay]
//
// The pj parameter locates either the counterparty endpoint (direct
// mode) or the relay service (relay mode).
type PaymentRequest struct {
	Address  string
	Amount   btcutil.Amount
	Endpoint string
	Mode     string
}

func (r PaymentRequest) Encode() (string, error) {
	if len(r.Address) <= 0 {
		return "", fmt.Errorf("missing address")
	}
	if r.Amount <= 0 {
		return "", fmt.Errorf("missing amount")
	}
	if _, err := url.ParseRequestURI(r.Endpoint); err != nil {
		return "", fmt.Errorf("invalid endpoint url: %s", err)
	}
	if len(r.Mode) > 0 && r.Mode != ModeDirect && r.Mode != ModeRelay {
		return "", fmt.Errorf("unknown exchange mode %s", r.Mode)
	}

	query := url.Values{}
	query.Set(amountParam, strconv.FormatFloat(r.Amount.ToBTC(), 'f', -1, 64))
	query.Set(endpointParam, r.Endpoint)
	if r.Mode == ModeRelay {
		query.Set(modeParam, ModeRelay)
	}

	return fmt.Sprintf("%s:%s?%s", uriScheme, r.Address, query.Encode()), nil
}

func DecodePaymentRequest(uri string) (*PaymentRequest, error) {
	scheme, rest, found := strings.Cut(uri, ":")
	if !found || scheme != uriScheme {
		return nil, fmt.Errorf("invalid uri scheme, expected %s", uriScheme)
	}

	address, rawQuery, _ := strings.Cut(rest, "?")
	if len(address) <= 0 {
		return nil, fmt.Errorf("missing address")
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid uri query: %s", err)
	}

	btcAmount, err := strconv.ParseFloat(query.Get(amountParam), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %s", err)
	}
	amount, err := btcutil.NewAmount(btcAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %s", err)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("invalid amount: must be positive")
	}

	endpoint := query.Get(endpointParam)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint url: %s", err)
	}

	mode := ModeDirect
	if m := query.Get(modeParam); len(m) > 0 {
		if m != ModeDirect && m != ModeRelay {
			return nil, fmt.Errorf("unknown exchange mode %s", m)
		}
		mode = m
	}

	return &PaymentRequest{
		Address:  address,
		Amount:   amount,
		Endpoint: endpoint,
		Mode:     mode,
	}, nil
}
