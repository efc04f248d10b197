package main

import (
	stderrors "errors"
	"testing"

	"github.com/hooklabs/prehook/internal/errors"
)

func TestErrorLine(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain error",
			err:  stderrors.New("something broke"),
			want: "error: something broke",
		},
		{
			name: "structured error",
			err:  errors.New(errors.ErrConfigNotFound, "Failed to parse `config.yaml`"),
			want: "error: Failed to parse `config.yaml`",
		},
		{
			name: "structured error with cause",
			err: errors.New(errors.ErrConfigNotFound, "Failed to parse `config.yaml`").
				WithCause(stderrors.New("missing field `rev`")),
			want: "error: Failed to parse `config.yaml`\n  caused by: missing field `rev`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorLine(tt.err); got != tt.want {
				t.Errorf("errorLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
