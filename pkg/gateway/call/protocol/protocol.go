// Package protocol frames the telephony media stream: JSON events over
// a websocket, audio carried as base64 mu-law in media events.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badEvent(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_event", Message: message, Param: param}
}

// MediaFormat describes the wire audio shape announced in start.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// StartPayload carries the call identity that arrives with the first
// event on a stream.
type StartPayload struct {
	AccountSID  string      `json:"accountSid,omitempty"`
	CallSID     string      `json:"callSid"`
	StreamSID   string      `json:"streamSid"`
	From        string      `json:"from,omitempty"`
	To          string      `json:"to,omitempty"`
	MediaFormat MediaFormat `json:"mediaFormat"`
}

type StartEvent struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	StreamSID      string       `json:"streamSid"`
	Start          StartPayload `json:"start"`
}

// MediaPayload is one 20ms frame of base64 mu-law.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type MediaEvent struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	StreamSID      string       `json:"streamSid,omitempty"`
	Media          MediaPayload `json:"media"`
}

// Audio decodes the frame payload.
func (m MediaEvent) Audio() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, badEvent("media payload is not valid base64", "media.payload")
	}
	return raw, nil
}

type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

type StopEvent struct {
	Event          string      `json:"event"`
	SequenceNumber string      `json:"sequenceNumber,omitempty"`
	StreamSID      string      `json:"streamSid,omitempty"`
	Stop           StopPayload `json:"stop"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type MarkEvent struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`
	Mark      MarkPayload `json:"mark"`
}

// DecodeInbound parses one inbound event. Callers drop the single event
// on error and keep reading; a framing error never ends the stream.
func DecodeInbound(data []byte) (any, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badEvent("invalid json event", "")
	}
	event := strings.TrimSpace(envelope.Event)
	if event == "" {
		return nil, badEvent("missing event", "event")
	}

	switch event {
	case "start":
		var msg StartEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badEvent("invalid start event", "")
		}
		if strings.TrimSpace(msg.Start.StreamSID) == "" && strings.TrimSpace(msg.StreamSID) == "" {
			return nil, badEvent("start.streamSid is required", "start.streamSid")
		}
		if msg.Start.StreamSID == "" {
			msg.Start.StreamSID = msg.StreamSID
		}
		return msg, nil
	case "media":
		var msg MediaEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badEvent("invalid media event", "")
		}
		if strings.TrimSpace(msg.Media.Payload) == "" {
			return nil, badEvent("media.payload is required", "media.payload")
		}
		return msg, nil
	case "stop":
		var msg StopEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badEvent("invalid stop event", "")
		}
		return msg, nil
	case "mark":
		var msg MarkEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badEvent("invalid mark event", "")
		}
		if strings.TrimSpace(msg.Mark.Name) == "" {
			return nil, badEvent("mark.name is required", "mark.name")
		}
		return msg, nil
	default:
		return nil, badEvent("unsupported event", "event")
	}
}

// OutboundMedia builds one outbound frame carrying mu-law audio.
func OutboundMedia(streamSID string, mulaw []byte) MediaEvent {
	return MediaEvent{
		Event:     "media",
		StreamSID: streamSID,
		Media:     MediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	}
}

// OutboundMark asks the far end to echo the mark back once preceding
// audio has played out.
func OutboundMark(streamSID, name string) MarkEvent {
	return MarkEvent{
		Event:     "mark",
		StreamSID: streamSID,
		Mark:      MarkPayload{Name: name},
	}
}

// ClearEvent tells the far end to drop any audio it has buffered, used
// on barge-in so the caller stops hearing the cancelled reply.
type ClearEvent struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// OutboundClear builds the buffered-audio flush event.
func OutboundClear(streamSID string) ClearEvent {
	return ClearEvent{Event: "clear", StreamSID: streamSID}
}
