package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testOrder() OrderPayload {
	return OrderPayload{
		Salt:          "12345",
		Maker:         "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		Signer:        "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount:   "5000000",
		TakerAmount:   "10000000",
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          OrderSideBuy,
		SignatureType: SignatureEOA,
	}
}

func recoverSigner(t *testing.T, digest []byte, sigHex string) string {
	t.Helper()
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		t.Fatalf("decode sig: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("sig len = %d", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("v = %d, want 27 or 28", sig[64])
	}
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex()
}

func TestSignOrderRecoversSigner(t *testing.T) {
	s, err := NewSigner("0x"+testKey, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	for _, negRisk := range []bool{false, true} {
		sig, err := s.SignOrder(testOrder(), negRisk)
		if err != nil {
			t.Fatalf("SignOrder(negRisk=%v): %v", negRisk, err)
		}
		digest, _ := s.orderDigest(testOrder(), negRisk)
		if got := recoverSigner(t, digest, sig); got != s.Address().Hex() {
			t.Errorf("negRisk=%v: recovered %s, want %s", negRisk, got, s.Address().Hex())
		}
	}
}

func TestSignOrderDomainDependsOnExchange(t *testing.T) {
	s, _ := NewSigner(testKey, 137)
	a, _ := s.orderDigest(testOrder(), false)
	b, _ := s.orderDigest(testOrder(), true)
	if hex.EncodeToString(a) == hex.EncodeToString(b) {
		t.Fatal("CTF and neg-risk digests must differ")
	}
}

func TestSignOrderRejectsBadAmounts(t *testing.T) {
	s, _ := NewSigner(testKey, 137)
	o := testOrder()
	o.MakerAmount = "1.5"
	if _, err := s.SignOrder(o, false); err == nil {
		t.Fatal("expected error for non-integer amount")
	}
}

func TestSignAuthMessageRecoversSigner(t *testing.T) {
	s, _ := NewSigner(testKey, 137)
	sig, err := s.SignAuthMessage(1700000000, 0)
	if err != nil {
		t.Fatalf("SignAuthMessage: %v", err)
	}
	if got := recoverSigner(t, s.authDigest(1700000000, 0), sig); got != s.Address().Hex() {
		t.Errorf("recovered %s, want %s", got, s.Address().Hex())
	}
}

func TestNewSignerRejectsGarbage(t *testing.T) {
	if _, err := NewSigner("nothex", 137); err == nil {
		t.Fatal("expected error")
	}
}

func TestL2HeadersAt(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("super-secret-key-bytes"))
	creds := Credentials{Key: "k", Secret: secret, Passphrase: "p"}

	h, err := creds.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	if err != nil {
		t.Fatalf("L2HeadersAt: %v", err)
	}

	mac := hmac.New(sha256.New, []byte("super-secret-key-bytes"))
	mac.Write([]byte(`1700000000POST/order{"a":1}`))
	want := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	if h["POLY_SIGNATURE"] != want {
		t.Errorf("signature = %s, want %s", h["POLY_SIGNATURE"], want)
	}
	if h["POLY_TIMESTAMP"] != "1700000000" || h["POLY_API_KEY"] != "k" || h["POLY_PASSPHRASE"] != "p" || h["POLY_ADDRESS"] != "0xabc" {
		t.Errorf("unexpected headers %v", h)
	}
}

func TestCredentialsComplete(t *testing.T) {
	if (Credentials{Key: "a", Secret: "b"}).Complete() {
		t.Error("missing passphrase reported complete")
	}
	if !(Credentials{Key: "a", Secret: "b", Passphrase: "c"}).Complete() {
		t.Error("full creds reported incomplete")
	}
	if s := (Credentials{Key: "abcdefgh", Secret: "12345678"}).String(); strings.Contains(s, "efgh") || strings.Contains(s, "5678") {
		t.Errorf("String leaked secret: %s", s)
	}
}

func TestEncryptedKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	if err := WriteEncryptedKey(path, "0x"+testKey, "hunter2"); err != nil {
		t.Fatalf("WriteEncryptedKey: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKey {
		t.Errorf("key = %s, want %s", got, testKey)
	}

	if _, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "wrong"}); err == nil {
		t.Error("expected error for wrong password")
	}
}

func TestLoadKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: " 0x" + testKey + " "})
	if err != nil || got != testKey {
		t.Fatalf("LoadKey raw = %q, %v", got, err)
	}

	if _, err := LoadKey(KeyConfig{RawPrivateKey: "0x1234"}); err == nil {
		t.Error("expected error for short key")
	}

	_, err = LoadKey(KeyConfig{})
	if !errors.Is(err, domain.ErrNoSigningKey) {
		t.Errorf("LoadKey(empty) = %v, want ErrNoSigningKey", err)
	}
	if (KeyConfig{}).Configured() {
		t.Error("empty config reported configured")
	}
}
