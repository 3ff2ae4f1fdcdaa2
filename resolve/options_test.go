package resolve

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := DefaultOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("Default options should validate: %v", err)
	}
	if opts.AskTimeout != 5*time.Second {
		t.Fatalf("Unexpected default ask timeout: %v", opts.AskTimeout)
	}
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero ask timeout", func(o *Options) { o.AskTimeout = 0 }},
		{"negative ask timeout", func(o *Options) { o.AskTimeout = -time.Second }},
		{"zero max entries", func(o *Options) { o.MaxEntries = 0 }},
		{"negative ttl", func(o *Options) { o.TTL = -time.Minute }},
	}

	for _, tc := range cases {
		opts := DefaultOptions()
		tc.mutate(&opts)
		if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("%s: expected ErrInvalidOptions, got %v", tc.name, err)
		}
	}
}
