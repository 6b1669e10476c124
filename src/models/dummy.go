package models

import (
	"context"
	"strings"
)

// DummyLLM is a canned generator for local runs and tests. It replies with
// Response when set, otherwise it echoes the last non-empty prompt line.
type DummyLLM struct {
	Response string
}

func NewDummyLLM(response string) *DummyLLM {
	return &DummyLLM{Response: response}
}

func (d *DummyLLM) Generate(_ context.Context, req Request) (string, error) {
	if d.Response != "" {
		return d.Response, nil
	}
	lines := strings.Split(req.Prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line, nil
		}
	}
	return "", ErrEmptyCompletion
}

func (d *DummyLLM) Name() string { return "dummy" }

var _ Generator = (*DummyLLM)(nil)
