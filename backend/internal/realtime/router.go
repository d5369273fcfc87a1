package realtime

import (
	"encoding/json"
	"log"

	"edufiliova/backend/internal/ws"
)

// HandleFrame 分发一帧下行消息；解析失败只记日志
func (c *Client) HandleFrame(data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("realtime malformed frame user=%s: %v", c.userID, err)
		return
	}

	switch f.Type {
	case ws.TypeAuthSuccess:
		c.ready.Store(true)
		c.inv.Invalidate(ScopeAll)
		c.startHeartbeat()

	case ws.TypeNewMessage, ws.TypeMessageSent:
		// 不做防抖，收到即刷新
		c.inv.Invalidate(ScopeMessages)

	case ws.TypeUserTyping:
		if f.UserID == "" || f.IsTyping == nil {
			log.Printf("realtime user_typing missing fields: %s", data)
			return
		}
		c.tracker.SetTyping(f.UserID, *f.IsTyping)

	case ws.TypeUserRecording:
		if f.UserID == "" || f.IsRecording == nil {
			log.Printf("realtime user_recording missing fields: %s", data)
			return
		}
		c.tracker.SetRecording(f.UserID, *f.IsRecording)

	case ws.TypePresenceUpdate:
		if f.UserID == "" {
			return
		}
		rec := PresenceRecord{UserID: f.UserID, Status: f.Status}
		if f.LastSeen != nil {
			rec.LastSeen = *f.LastSeen
		}
		c.tracker.SetPresence(rec)

	case ws.TypeAppointmentApproved, ws.TypeAppointmentStatusUpdate:
		c.inv.Invalidate(ScopeAppointments)
		title, body := appointmentNotice(f)
		c.notifier.Notify(title, body)

	case ws.TypeCallOffer, ws.TypeCallAnswer, ws.TypeCallIceCandidate, ws.TypeCallEnd:
		c.dispatchCall(f)

	case ws.TypeCallError:
		log.Printf("realtime call_error receiver=%s: %s", f.ReceiverID, f.text())
		if fn := c.callHandlers().OnCallError; fn != nil {
			fn(CallError{ReceiverID: f.ReceiverID, Message: f.text()})
		}

	case ws.TypeMessageError, ws.TypeError:
		log.Printf("realtime %s user=%s: %s", f.Type, c.userID, f.text())

	default:
		log.Printf("realtime ignore frame type=%q", f.Type)
	}
}

func appointmentNotice(f inboundFrame) (string, string) {
	var appt struct {
		Subject string `json:"subject"`
		Status  string `json:"status"`
	}
	if len(f.Appointment) > 0 {
		_ = json.Unmarshal(f.Appointment, &appt)
	}
	if msg := f.text(); msg != "" {
		if f.Type == ws.TypeAppointmentApproved {
			return "Appointment approved", msg
		}
		return "Appointment updated", msg
	}
	if f.Type == ws.TypeAppointmentApproved {
		if appt.Subject != "" {
			return "Appointment approved", "Your " + appt.Subject + " appointment has been approved"
		}
		return "Appointment approved", "Your appointment has been approved"
	}
	if appt.Status != "" {
		return "Appointment updated", "Appointment status changed to " + appt.Status
	}
	return "Appointment updated", "Your appointment status has changed"
}
