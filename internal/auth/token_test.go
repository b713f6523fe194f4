package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenFromSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase", in: "uryyb", want: "hello"},
		{name: "mixed case", in: "NoPq", want: "AbCd"},
		{name: "digits and punctuation untouched", in: "n1.o-2_M", want: "a1.b-2_Z"},
		{name: "empty", in: "", want: ""},
		{name: "non ascii untouched", in: "é", want: "é"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, TokenFromSession(tc.in))
		})
	}
}

func TestTokenFromSessionIsInvolution(t *testing.T) {
	t.Parallel()

	const raw = "eyJhbGciOiJIUzI1NiJ9.abcXYZ.123"
	assert.Equal(t, raw, TokenFromSession(TokenFromSession(raw)))
}
