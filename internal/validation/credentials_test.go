package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/infirmary/internal/models"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
		errMsg   string
	}{
		{name: "valid - lowercase", username: "nurse", wantErr: false},
		{name: "valid - with dot", username: "dr.silva", wantErr: false},
		{name: "valid - with underscore and digits", username: "nurse_02", wantErr: false},
		{name: "valid - max length", username: strings.Repeat("a", MaxUsernameLen), wantErr: false},
		{name: "invalid - empty", username: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "invalid - too short", username: "ab", wantErr: true, errMsg: "at least 3"},
		{name: "invalid - too long", username: strings.Repeat("a", MaxUsernameLen+1), wantErr: true, errMsg: "must not exceed"},
		{name: "invalid - space", username: "dr silva", wantErr: true, errMsg: "can only contain"},
		{name: "invalid - cyrillic", username: "врач", wantErr: true, errMsg: "can only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, models.IsValidation(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct-horse"))
	assert.ErrorContains(t, ValidatePassword(""), "cannot be empty")
	assert.ErrorContains(t, ValidatePassword("short"), "at least 8")
}
