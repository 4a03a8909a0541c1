package backend

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const sseDone = "[DONE]"

var errStopStream = errors.New("stop stream")

// readSSE calls onData for every server-sent event carrying data. Multi-line
// data fields are joined with "\n". Reading ends at EOF, at the "[DONE]"
// sentinel, or when onData returns errStopStream.
func readSSE(r io.Reader, onData func(data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		if strings.TrimSpace(payload) == sseDone {
			return errStopStream
		}
		return onData(payload)
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return stopped(err)
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return stopped(dispatch())
}

func stopped(err error) error {
	if errors.Is(err, errStopStream) {
		return nil
	}
	return err
}
