package runner

import (
	"testing"
	"time"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		validate func(*testing.T, Options)
	}{
		{
			name:  "defaults",
			input: Options{},
			validate: func(t *testing.T, o Options) {
				if o.BurstSize != 1 {
					t.Errorf("BurstSize = %d, want 1", o.BurstSize)
				}
				if o.Logger == nil {
					t.Error("Logger should not be nil")
				}
				if o.Sleep == nil {
					t.Error("Sleep should not be nil")
				}
			},
		},
		{
			name: "negative values corrected",
			input: Options{Config: Config{
				Threads:           -2,
				RequestsPerThread: -10,
				Delay:             -time.Second,
				BurstSize:         -3,
				PrintOnIteration:  -1,
			}},
			validate: func(t *testing.T, o Options) {
				if o.Threads != 0 {
					t.Errorf("Threads = %d, want 0", o.Threads)
				}
				if o.RequestsPerThread != 0 {
					t.Errorf("RequestsPerThread = %d, want 0", o.RequestsPerThread)
				}
				if o.Delay != 0 {
					t.Errorf("Delay = %s, want 0", o.Delay)
				}
				if o.BurstSize != 1 {
					t.Errorf("BurstSize = %d, want 1", o.BurstSize)
				}
				if o.PrintOnIteration != 0 {
					t.Errorf("PrintOnIteration = %d, want 0", o.PrintOnIteration)
				}
			},
		},
		{
			name: "preserve valid values",
			input: Options{Config: Config{
				Threads:           8,
				RequestsPerThread: 100,
				Delay:             20 * time.Millisecond,
				BurstSize:         5,
				PrintOnIteration:  10,
			}},
			validate: func(t *testing.T, o Options) {
				if o.Threads != 8 || o.RequestsPerThread != 100 || o.BurstSize != 5 || o.PrintOnIteration != 10 {
					t.Errorf("unexpected config %+v", o.Config)
				}
				if o.Delay != 20*time.Millisecond {
					t.Errorf("Delay = %s", o.Delay)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()
			tt.validate(t, opts)
		})
	}
}

func TestCancellationToken(t *testing.T) {
	token := NewCancellationToken()
	if !token.Active() {
		t.Fatal("new token should be active")
	}
	token.Cancel()
	token.Cancel()
	if token.Active() {
		t.Fatal("token should be inactive after Cancel")
	}
}
