package kernel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-zeromq/zmq4"
)

const delimiter = "<IDS|MSG>"

// ParseMessage decodes one multipart frame sequence into identity prefix and
// typed message, verifying the HMAC signature when the session carries a
// signing key. It never re-serializes the received JSON frames for
// verification — those bytes are hashed exactly as received, since JSON
// re-encoding is not guaranteed byte-stable across implementations.
func ParseMessage(session *Session, frames [][]byte) ([][]byte, *Message, error) {
	delimIdx := -1
	for i, frame := range frames {
		if string(frame) == delimiter {
			delimIdx = i
			break
		}
	}
	if delimIdx == -1 {
		return nil, nil, newWireError(ErrMissingDelimiter, "")
	}

	identities := frames[:delimIdx]
	rest := frames[delimIdx+1:]
	if len(rest) < 5 {
		return nil, nil, newWireError(ErrMissingDelimiter, "truncated frame sequence")
	}

	signature := string(rest[0])
	headerBytes := rest[1]
	parentHeaderBytes := rest[2]
	metadataBytes := rest[3]
	contentBytes := rest[4]
	buffers := rest[5:]

	if session.HasKey() {
		if err := verifySignature(session.Key(), signature, headerBytes, parentHeaderBytes, metadataBytes, contentBytes); err != nil {
			return nil, nil, err
		}
	}

	var m Message
	if err := json.Unmarshal(headerBytes, &m.Header); err != nil {
		return nil, nil, err
	}
	if len(parentHeaderBytes) > 0 && string(parentHeaderBytes) != "null" {
		if err := json.Unmarshal(parentHeaderBytes, &m.ParentHeader); err != nil {
			return nil, nil, err
		}
	}
	if err := json.Unmarshal(metadataBytes, &m.Metadata); err != nil {
		m.Metadata = map[string]interface{}{}
	}
	if err := json.Unmarshal(contentBytes, &m.Content); err != nil {
		m.Content = map[string]interface{}{}
	}
	m.Buffers = buffers

	return identities, &m, nil
}

func verifySignature(key []byte, signature string, header, parentHeader, metadata, content []byte) error {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return newWireError(ErrInvalidHmac, err.Error())
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(header)
	mac.Write(parentHeader)
	mac.Write(metadata)
	mac.Write(content)
	expected := mac.Sum(nil)

	if !hmac.Equal(sig, expected) {
		return newWireError(ErrBadSignature, "")
	}
	return nil
}

// buildHeader stamps a fresh outbound header for the given verb.
func buildHeader(session *Session, msgType string) Header {
	return Header{
		MsgID:    newMsgID(),
		Username: session.Username,
		Session:  session.ID,
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  protocolVersion,
	}
}

// encodeFrames serializes and signs an outbound message, returning the five
// frames that follow the delimiter (signature, header, parent header,
// metadata, content) — identities are prepended separately by the caller.
func encodeFrames(session *Session, parentHeader Header, msgType string, content interface{}) ([][]byte, error) {
	header, err := json.Marshal(buildHeader(session, msgType))
	if err != nil {
		return nil, err
	}
	parent, err := json.Marshal(parentHeader)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	var signature string
	if session.HasKey() {
		mac := hmac.New(sha256.New, session.Key())
		mac.Write(header)
		mac.Write(parent)
		mac.Write(metadata)
		mac.Write(contentBytes)
		signature = hex.EncodeToString(mac.Sum(nil))
	}

	return [][]byte{
		[]byte(signature),
		header,
		parent,
		metadata,
		contentBytes,
	}, nil
}

// sendOn emits a message on sock, preserving identity frames for ROUTER
// correlation.
func sendOn(sock zmq4.Socket, session *Session, parentHeader Header, msgType string, content interface{}, identities [][]byte) error {
	body, err := encodeFrames(session, parentHeader, msgType, content)
	if err != nil {
		return err
	}

	frames := make([][]byte, 0, len(identities)+1+len(body))
	frames = append(frames, identities...)
	frames = append(frames, []byte(delimiter))
	frames = append(frames, body...)

	return sock.Send(zmq4.NewMsgFrom(frames...))
}
