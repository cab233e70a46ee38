package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  string
	}{
		{"valid", "Shojib Ahmed", "shojib@example.com", "hunter42x", ""},
		{"blank name", "   ", "a@example.com", "hunter42x", "name is required"},
		{"bad email", "A", "not-an-email", "hunter42x", "invalid email"},
		{"short password", "A", "a@example.com", "ab1", "at least 8 characters"},
		{"no digit", "A", "a@example.com", "onlyletters", "one letter and one number"},
		{"no letter", "A", "a@example.com", "123456789", "one letter and one number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.userName, tt.email, tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
