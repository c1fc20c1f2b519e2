package security

// Shared HS256 secret for unit tests only. Do not use in production.
const testSecret = "0123456789abcdef0123456789abcdef"

// NewTestCodec returns an HS256 codec with a fixed test secret and test
// issuer/audience. For unit tests only.
func NewTestCodec() (*TokenCodec, error) {
	return NewHMACCodec([]byte(testSecret), "sessiongate-auth", "sessiongate-api")
}
