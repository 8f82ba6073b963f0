// Package status mirrors the WhatsApp connection state of the signed-in
// operator from its remote status document into a local view model.
package status

import (
	"math"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateWaitingQR    State = "waiting_qr"
	StateConnected    State = "connected"
)

func (s State) IsPending() bool {
	return s == StateConnecting || s == StateWaitingQR
}

func parseState(raw string) State {
	switch State(raw) {
	case StateConnecting, StateWaitingQR, StateConnected:
		return State(raw)
	default:
		return StateDisconnected
	}
}

// ConnectionStatus is derived from the remote document and never
// authoritative. HasQR always equals QRCode != "".
type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	State           State      `json:"state"`
	QRCode          string     `json:"qrCode"`
	QRCodeTimestamp *time.Time `json:"qrCodeTimestamp"`
	HasQR           bool       `json:"hasQR"`
	RetryCount      int        `json:"retryCount"`
	LastUpdated     *time.Time `json:"lastUpdated"`
	QRExpired       bool       `json:"qrExpired"`
}

// QRAge is zero when there is no QR timestamp.
func (s ConnectionStatus) QRAge(now time.Time) time.Duration {
	if s.QRCodeTimestamp == nil {
		return 0
	}
	return now.Sub(*s.QRCodeTimestamp)
}

// QRRemaining counts down from lifetime, never below zero.
func (s ConnectionStatus) QRRemaining(now time.Time, lifetime time.Duration) time.Duration {
	remaining := lifetime - s.QRAge(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Document field names of the per-identity status record.
const (
	fieldIsConnected     = "isConnected"
	fieldConnectionState = "connectionState"
	fieldQRCode          = "qrCode"
	fieldQRCodeTimestamp = "qrCodeTimestamp"
	fieldLastUpdated     = "lastUpdated"
	fieldRetryCount      = "retryCount"
)

// FromDocument maps a raw status document. Missing or mistyped fields fall
// back to disconnected, empty and zero.
func FromDocument(data map[string]any) ConnectionStatus {
	s := ConnectionStatus{
		Connected:       asBool(data[fieldIsConnected]),
		State:           parseState(asString(data[fieldConnectionState])),
		QRCode:          asString(data[fieldQRCode]),
		QRCodeTimestamp: asTime(data[fieldQRCodeTimestamp]),
		RetryCount:      asInt(data[fieldRetryCount]),
		LastUpdated:     asTime(data[fieldLastUpdated]),
	}
	s.HasQR = s.QRCode != ""
	return s
}

// mergePayload overlays the keys present in a backend status response onto
// prev. The response uses the view model's own field names.
func mergePayload(prev ConnectionStatus, payload map[string]any) ConnectionStatus {
	next := prev
	if v, ok := payload["connected"]; ok {
		next.Connected = asBool(v)
	}
	if v, ok := payload["state"]; ok {
		next.State = parseState(asString(v))
	}
	if v, ok := payload["qrCode"]; ok {
		next.QRCode = asString(v)
	}
	if v, ok := payload["qrCodeTimestamp"]; ok {
		next.QRCodeTimestamp = asTime(v)
	}
	if v, ok := payload["retryCount"]; ok {
		next.RetryCount = asInt(v)
	}
	if v, ok := payload["lastUpdated"]; ok {
		next.LastUpdated = asTime(v)
	}
	if next.State != StateDisconnected || next.QRCode != "" {
		next.QRExpired = false
	}
	next.HasQR = next.QRCode != ""
	return next
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// asTime accepts document timestamps and Unix millisecond numbers.
func asTime(v any) *time.Time {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return nil
		}
		t = *x
	case int64:
		t = time.UnixMilli(x)
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		t = time.UnixMilli(int64(x))
	case string:
		parsed, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return nil
		}
		t = parsed
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	return &t
}
