package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/railbook/internal/apperr"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"9876543210", "9876543210", true},
		{"+91 98765 43210", "9876543210", true},
		{"91-9876543210", "9876543210", true},
		{"09876543210", "9876543210", true},
		{"(987) 654-3210", "9876543210", true},
		{"12345", "", false},
		{"1234567890", "", false},
		{"98765432a0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if !tt.ok {
				assert.Equal(t, apperr.Validation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignInOTPRequiresStart(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSignIn(runner, testSettings())

	err := s.SubmitOTP(context.Background(), "1234")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "no sign-in in progress")
	assert.Zero(t, runner.calls.Load())
}

func TestSignInStartFailureLeavesNothingPending(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSignIn(runner, testSettings())

	err := s.Start(context.Background(), "+91 98765 43210")
	assert.Equal(t, apperr.SessionUnavailable, apperr.KindOf(err))
	assert.False(t, s.Pending())
	assert.Equal(t, int32(1), runner.calls.Load())

	err = s.Start(context.Background(), "555")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "******3210", maskPhone("9876543210"))
	assert.Equal(t, "****", maskPhone("12"))
}
