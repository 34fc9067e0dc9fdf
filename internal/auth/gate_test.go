package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_Authenticate(t *testing.T) {
	tests := []struct {
		name          string
		secret        string
		authorization string
		wantErr       bool
	}{
		{name: "exact secret", secret: "s3cret", authorization: "Bearer s3cret"},
		{name: "missing credential", secret: "s3cret", authorization: "", wantErr: true},
		{name: "malformed scheme", secret: "s3cret", authorization: "Basic s3cret", wantErr: true},
		{name: "lowercase scheme", secret: "s3cret", authorization: "bearer s3cret", wantErr: true},
		{name: "scheme without token", secret: "s3cret", authorization: "Bearer ", wantErr: true},
		{name: "wrong token", secret: "s3cret", authorization: "Bearer s3cre", wantErr: true},
		{name: "token with trailing space", secret: "s3cret", authorization: "Bearer s3cret ", wantErr: true},
		{name: "empty secret authorizes nothing", secret: "", authorization: "Bearer ", wantErr: true},
		{name: "empty secret rejects any token", secret: "", authorization: "Bearer anything", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGate(tt.secret).Authenticate(tt.authorization)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = BearerToken("Token abc")
	assert.False(t, ok)
}
