package domain

// Credentials is one exchange API credential set. Passphrase is only used by
// venues that require it (e.g. OKX); it is empty elsewhere.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// Empty reports whether the credential set is unusable.
func (c Credentials) Empty() bool {
	return c.APIKey == "" || c.APISecret == ""
}
