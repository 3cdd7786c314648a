// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Warn("queue full", "size", 10, "max", 10)

	out := buf.String()
	if !strings.Contains(out, "queue full") {
		t.Fatalf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, "WARN") {
		t.Fatalf("expected WARN level in output, got: %s", out)
	}
	if !strings.Contains(out, "size=10") {
		t.Fatalf("expected key/value pair in output, got: %s", out)
	}
}

func TestWithAddsPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).With("peer", "p1")
	l.Info("status update", "number", 5)

	out := buf.String()
	if !strings.Contains(out, "peer=p1") {
		t.Fatalf("expected persistent field in output, got: %s", out)
	}
	if !strings.Contains(out, "number=5") {
		t.Fatalf("expected call-site field in output, got: %s", out)
	}
}
