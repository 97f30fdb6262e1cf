// Package models defines messaging event types for SurveyPipe chat channels.
package models

// MessageStatus represents the delivery status of an outgoing message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was handed to the channel.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the channel confirmed delivery.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the participant read the message.
	MessageStatusRead MessageStatus = "read"
)

// Receipt is a delivery status event for an outgoing message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response is an incoming participant message from a chat channel.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}
