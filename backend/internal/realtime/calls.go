package realtime

import (
	"encoding/json"

	"edufiliova/backend/internal/ws"
)

const (
	CallTypeVoice = "voice"
	CallTypeVideo = "video"
)

// CallEvent 对端发来的信令，负载原样透传
type CallEvent struct {
	Type      string
	SenderID  string
	CallType  string
	Offer     json.RawMessage
	Answer    json.RawMessage
	Candidate json.RawMessage
}

type CallError struct {
	ReceiverID string
	Message    string
}

type CallHandlers struct {
	OnCallOffer        func(CallEvent)
	OnCallAnswer       func(CallEvent)
	OnCallIceCandidate func(CallEvent)
	OnCallEnd          func(CallEvent)
	OnCallError        func(CallError)
}

// SetCallHandlers 只保留一个订阅者：后一次调用整体替换前一次，不做合并。
// 传入零值等于取消订阅。
func (c *Client) SetCallHandlers(h CallHandlers) {
	c.callMu.Lock()
	c.calls = h
	c.callMu.Unlock()
}

func (c *Client) callHandlers() CallHandlers {
	c.callMu.RLock()
	defer c.callMu.RUnlock()
	return c.calls
}

func (c *Client) SendCallOffer(receiverID, callType string, offer json.RawMessage) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeCallOffer, ReceiverID: receiverID, CallType: callType, Offer: offer})
}

func (c *Client) SendCallAnswer(receiverID string, answer json.RawMessage) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeCallAnswer, ReceiverID: receiverID, Answer: answer})
}

func (c *Client) SendIceCandidate(receiverID string, candidate json.RawMessage) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeCallIceCandidate, ReceiverID: receiverID, Candidate: candidate})
}

func (c *Client) SendCallEnd(receiverID string) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeCallEnd, ReceiverID: receiverID})
}

func (c *Client) dispatchCall(f inboundFrame) {
	h := c.callHandlers()
	evt := CallEvent{
		Type:      f.Type,
		SenderID:  f.SenderID,
		CallType:  f.CallType,
		Offer:     f.Offer,
		Answer:    f.Answer,
		Candidate: f.Candidate,
	}
	var fn func(CallEvent)
	switch f.Type {
	case ws.TypeCallOffer:
		fn = h.OnCallOffer
	case ws.TypeCallAnswer:
		fn = h.OnCallAnswer
	case ws.TypeCallIceCandidate:
		fn = h.OnCallIceCandidate
	case ws.TypeCallEnd:
		fn = h.OnCallEnd
	}
	if fn != nil {
		fn(evt)
	}
}
