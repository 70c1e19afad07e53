package notify

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// CallbackKind is the operator decision carried by an inline button.
type CallbackKind byte

const (
	CallbackFollow CallbackKind = 1
	CallbackIgnore CallbackKind = 2
)

const (
	callbackVersion = 1

	modeNone    byte = 0
	modePassive byte = 1
	modeNow     byte = 2

	txHex byte = 0
	txRaw byte = 1

	// maxCallbackData is Telegram's callback_data limit in bytes.
	maxCallbackData = 64
)

// Callback is the decoded payload of an alert button press.
type Callback struct {
	Kind   CallbackKind
	TxHash string
	// Mode is set for CallbackFollow only.
	Mode domain.MirrorMode
}

// EncodeCallback packs cb into callback data: a version byte, kind, mode,
// tx encoding and the tx hash, base64url without padding. A canonical
// 0x-prefixed 32-byte hash is stored as raw bytes.
func EncodeCallback(cb Callback) (string, error) {
	var mode byte
	switch cb.Kind {
	case CallbackFollow:
		switch cb.Mode {
		case domain.MirrorPassive:
			mode = modePassive
		case domain.MirrorNow:
			mode = modeNow
		default:
			return "", fmt.Errorf("notify: %w: mode %q", domain.ErrBadCallback, cb.Mode)
		}
	case CallbackIgnore:
		mode = modeNone
	default:
		return "", fmt.Errorf("notify: %w: kind %d", domain.ErrBadCallback, cb.Kind)
	}
	if cb.TxHash == "" {
		return "", fmt.Errorf("notify: %w: empty tx hash", domain.ErrBadCallback)
	}

	enc, payload := txRaw, []byte(cb.TxHash)
	if b, ok := canonicalTxBytes(cb.TxHash); ok {
		enc, payload = txHex, b
	}

	raw := append([]byte{callbackVersion, byte(cb.Kind), mode, enc}, payload...)
	out := base64.RawURLEncoding.EncodeToString(raw)
	if len(out) > maxCallbackData {
		return "", fmt.Errorf("notify: %w: payload %d bytes exceeds %d", domain.ErrBadCallback, len(out), maxCallbackData)
	}
	return out, nil
}

// DecodeCallback reverses EncodeCallback. Any malformed input, including an
// unknown version, yields an error wrapping domain.ErrBadCallback.
func DecodeCallback(data string) (Callback, error) {
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return Callback{}, fmt.Errorf("notify: %w: %v", domain.ErrBadCallback, err)
	}
	if len(raw) < 5 {
		return Callback{}, fmt.Errorf("notify: %w: short payload", domain.ErrBadCallback)
	}
	if raw[0] != callbackVersion {
		return Callback{}, fmt.Errorf("notify: %w: unknown version %d", domain.ErrBadCallback, raw[0])
	}

	cb := Callback{Kind: CallbackKind(raw[1])}
	switch cb.Kind {
	case CallbackFollow:
		switch raw[2] {
		case modePassive:
			cb.Mode = domain.MirrorPassive
		case modeNow:
			cb.Mode = domain.MirrorNow
		default:
			return Callback{}, fmt.Errorf("notify: %w: mode %d", domain.ErrBadCallback, raw[2])
		}
	case CallbackIgnore:
		if raw[2] != modeNone {
			return Callback{}, fmt.Errorf("notify: %w: ignore with mode %d", domain.ErrBadCallback, raw[2])
		}
	default:
		return Callback{}, fmt.Errorf("notify: %w: kind %d", domain.ErrBadCallback, raw[1])
	}

	payload := raw[4:]
	switch raw[3] {
	case txHex:
		if len(payload) != 32 {
			return Callback{}, fmt.Errorf("notify: %w: hash length %d", domain.ErrBadCallback, len(payload))
		}
		cb.TxHash = "0x" + hex.EncodeToString(payload)
	case txRaw:
		cb.TxHash = string(payload)
	default:
		return Callback{}, fmt.Errorf("notify: %w: tx encoding %d", domain.ErrBadCallback, raw[3])
	}
	return cb, nil
}

// canonicalTxBytes returns the bytes of a lowercase 0x-prefixed 32-byte hex
// hash. Mixed-case hashes stay raw so the round trip is exact.
func canonicalTxBytes(tx string) ([]byte, bool) {
	if len(tx) != 66 || !strings.HasPrefix(tx, "0x") || strings.ToLower(tx) != tx {
		return nil, false
	}
	b, err := hex.DecodeString(tx[2:])
	if err != nil {
		return nil, false
	}
	return b, true
}
