package conceptual

import "time"

// TokenLayout yields tokens which sort lexically in chronological order,
// at millisecond granularity. Tokens are used as filename components,
// so no path separators or colons allowed.
const TokenLayout = "20060102T150405.000"

// Token identifies one trip/session.
// It groups segment files and names the finalized track.
type Token string

// NewToken mints a token for the given wall-clock time.
func NewToken(t time.Time) Token {
	return Token(t.UTC().Format(TokenLayout))
}

func (t Token) String() string {
	return string(t)
}

func (t Token) Empty() bool {
	return t == ""
}

// Time recovers the creation time from the token, if parseable.
func (t Token) Time() (time.Time, error) {
	return time.Parse(TokenLayout, string(t))
}
