package daemonproto

import (
	"encoding/json"
	"io"
)

// ReadFramedRequest implements the dual eager-parse-on-chunk / parse-on-end
// framing of spec.md §4.D: it reads from r in small increments, attempting
// to json.Unmarshal the buffer after every read, returning as soon as a
// complete JSON object parses. If r reaches EOF without ever producing a
// parseable buffer, the accumulated bytes are returned as the final
// attempt (covering the "re-attempts on the end event" case) — a caller
// distinguishes "empty" from "malformed" by checking len(buf).
func ReadFramedRequest(r io.Reader) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if json.Valid(buf) {
				return buf, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return buf, err
		}
	}
}

// WriteFramedResponse marshals resp and writes it in one call, matching the
// "one response per connection" contract — the caller closes the
// connection immediately after this returns.
func WriteFramedResponse(w io.Writer, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
