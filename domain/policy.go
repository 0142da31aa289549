package domain

import "time"

// Policy holds the token issuance and verification settings. It is passed
// explicitly into the engine and flows at construction time; nothing in the
// core reads ambient configuration.
type Policy struct {
	// MaxTokenLifetime is how long a token stays verifiable after creation.
	MaxTokenLifetime time.Duration

	// RequireSameIP demands that the verifying request comes from the same
	// (possibly anonymized) address the token was requested from.
	RequireSameIP bool

	// RequireSameBrowser demands that the verifying request presents the
	// browser cookie set when the link was requested.
	RequireSameBrowser bool

	// AnonymizeIPAddress stores and compares network prefixes instead of
	// full addresses.
	AnonymizeIPAddress bool

	// IPv4PrefixBits and IPv6PrefixBits set the anonymization mask lengths.
	IPv4PrefixBits int
	IPv6PrefixBits int

	// CookieName is the browser-binding cookie name.
	CookieName string

	// DefaultRedirectURL is where verified users land when the login request
	// carried no destination.
	DefaultRedirectURL string
}

// DefaultPolicy returns the stock policy: 5 minute tokens, no client
// binding, no anonymization.
func DefaultPolicy() Policy {
	return Policy{
		MaxTokenLifetime:   5 * time.Minute,
		IPv4PrefixBits:     16,
		IPv6PrefixBits:     64,
		CookieName:         "sesame_browser",
		DefaultRedirectURL: "/",
	}
}
