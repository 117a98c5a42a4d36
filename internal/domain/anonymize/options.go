// Package anonymize derives stable pseudonymous visitor identifiers.
package anonymize

// Option applies a configuration option to the Anonymizer.
type Option func(*Anonymizer)

// WithDigestLen sets how many digest bytes the pseudonym keeps (1..32).
func WithDigestLen(n int) Option {
	return func(a *Anonymizer) {
		if n > 0 && n <= 32 {
			a.digestLen = n
		}
	}
}
