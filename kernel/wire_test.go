package kernel

import (
	"encoding/json"
	"testing"
)

func buildFrames(t *testing.T, session *Session, msgType string, content interface{}) [][]byte {
	t.Helper()
	body, err := encodeFrames(session, Header{}, msgType, content)
	if err != nil {
		t.Fatalf("encodeFrames: %v", err)
	}
	frames := [][]byte{[]byte("id-1"), []byte(delimiter)}
	frames = append(frames, body...)
	return frames
}

func TestParseMessageRoundTrip(t *testing.T) {
	session := NewSession("kernel", []byte("secret"))
	frames := buildFrames(t, session, "kernel_info_request", map[string]interface{}{})

	identities, msg, err := ParseMessage(session, frames)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(identities) != 1 || string(identities[0]) != "id-1" {
		t.Fatalf("identities not preserved: %v", identities)
	}
	if msg.Header.MsgType != "kernel_info_request" {
		t.Fatalf("msg_type = %q, want kernel_info_request", msg.Header.MsgType)
	}
}

func TestParseMessageMissingDelimiter(t *testing.T) {
	session := NewSession("kernel", nil)
	frames := [][]byte{[]byte("not-a-delimiter"), []byte("{}")}

	_, _, err := ParseMessage(session, frames)
	if err == nil {
		t.Fatal("expected error for missing delimiter")
	}
	if !isWireErr(err, ErrMissingDelimiter) {
		t.Fatalf("got %v, want ErrMissingDelimiter", err)
	}
}

func TestParseMessageBadSignature(t *testing.T) {
	session := NewSession("kernel", []byte("secret"))
	frames := buildFrames(t, session, "kernel_info_request", map[string]interface{}{})

	// Flip the signature frame (index 2: id, delimiter, signature).
	frames[2] = []byte("0000000000000000000000000000000000000000000000000000000000000000")

	_, _, err := ParseMessage(session, frames)
	if err == nil {
		t.Fatal("expected bad signature error")
	}
	if !isWireErr(err, ErrBadSignature) {
		t.Fatalf("got %v, want ErrBadSignature", err)
	}
}

func TestParseMessageNoKeyAcceptsAnySignature(t *testing.T) {
	session := NewSession("kernel", nil)
	frames := buildFrames(t, session, "kernel_info_request", map[string]interface{}{})
	frames[2] = []byte("garbage-not-hex")

	_, msg, err := ParseMessage(session, frames)
	if err != nil {
		t.Fatalf("ParseMessage with no key should accept any signature: %v", err)
	}
	if msg.Header.MsgType != "kernel_info_request" {
		t.Fatalf("unexpected msg_type %q", msg.Header.MsgType)
	}
}

func TestParseMessageFlippedContentBitFailsSignature(t *testing.T) {
	session := NewSession("kernel", []byte("secret"))
	frames := buildFrames(t, session, "execute_request", map[string]interface{}{"code": "1+1"})

	var content map[string]interface{}
	if err := json.Unmarshal(frames[6], &content); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	content["code"] = "2+2"
	tampered, _ := json.Marshal(content)
	frames[6] = tampered

	_, _, err := ParseMessage(session, frames)
	if !isWireErr(err, ErrBadSignature) {
		t.Fatalf("got %v, want ErrBadSignature after tampering content", err)
	}
}

func isWireErr(err error, kind error) bool {
	we, ok := err.(*wireError)
	return ok && we.kind == kind
}
