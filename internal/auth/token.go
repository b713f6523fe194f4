// Package auth derives the forecast API bearer token from the site session cookie.
package auth

// SessionCookie is the cookie set by the landing page that carries the obfuscated token.
const SessionCookie = "mfsession"

// TokenFromSession decodes the session cookie value with ROT13. Only ASCII
// letters are rotated; digits and punctuation pass through.
func TokenFromSession(cookie string) string {
	out := []byte(cookie)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = 'a' + (c-'a'+13)%26
		case c >= 'A' && c <= 'Z':
			out[i] = 'A' + (c-'A'+13)%26
		}
	}
	return string(out)
}
