package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
)

// SignSHA256Hex returns the lowercase hex HMAC-SHA256 of message. Binance
// signs request query strings this way.
func SignSHA256Hex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignSHA256Base64 returns the base64 HMAC-SHA256 of message. OKX signs
// timestamp+method+path+body this way.
func SignSHA256Base64(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignSHA512Base64 returns the base64 HMAC-SHA512 of message using a raw key.
// Kraken signs path+SHA256(nonce+postdata) with the base64-decoded API secret.
func SignSHA512Base64(key []byte, message []byte) string {
	mac := hmac.New(sha512.New, key)
	mac.Write(message)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
