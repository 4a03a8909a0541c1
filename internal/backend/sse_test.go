package backend

import (
	"errors"
	"strings"
	"testing"
)

func TestReadSSE(t *testing.T) {
	stream := ": keep-alive\n" +
		"event: message\n" +
		"data: one\n\n" +
		"data: two-a\n" +
		"data: two-b\r\n\r\n" +
		"data: [DONE]\n\n" +
		"data: never\n\n"

	var got []string
	err := readSSE(strings.NewReader(stream), func(data string) error {
		got = append(got, data)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two-a\ntwo-b" {
		t.Errorf("unexpected frames %q", got)
	}
}

func TestReadSSE_TrailingFrameWithoutBlankLine(t *testing.T) {
	var got []string
	err := readSSE(strings.NewReader("data: last"), func(data string) error {
		got = append(got, data)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "last" {
		t.Errorf("unexpected frames %q", got)
	}
}

func TestReadSSE_CallbackError(t *testing.T) {
	boom := errors.New("boom")
	err := readSSE(strings.NewReader("data: a\n\ndata: b\n\n"), func(string) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}
