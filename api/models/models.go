// Package models holds the wire types shared between the console API and the
// upstream funnelchat API. Field names mirror the upstream JSON contracts.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Instance is a single WhatsApp connection/session managed by the upstream
// backend. The console only reads these; all mutation happens upstream.
type Instance struct {
	ID                 uuid.UUID        `json:"instanceId"`
	Name               string           `json:"name"`
	SessionName        string           `json:"sessionName"`
	ClientToken        string           `json:"clientToken,omitempty"`
	InstanceToken      string           `json:"instanceToken,omitempty"`
	StoreJID           *string          `json:"storeJid,omitempty"`
	SubscriptionActive bool             `json:"subscriptionActive"`
	PhoneConnected     bool             `json:"phoneConnected"`
	WhatsappConnected  bool             `json:"whatsappConnected"`
	Middleware         string           `json:"middleware"`
	Webhooks           *WebhookSettings `json:"webhooks,omitempty"`
	Due                *time.Time       `json:"due,omitempty"`
	CanceledAt         *time.Time       `json:"canceledAt,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

type InstanceList struct {
	Data     []Instance `json:"data"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Total    int64      `json:"total"`
}

type InstanceStatus struct {
	InstanceID         uuid.UUID `json:"instanceId"`
	Connected          bool      `json:"connected"`
	StoreJID           *string   `json:"storeJid,omitempty"`
	LastConnected      time.Time `json:"lastConnected,omitempty"`
	AutoReconnect      bool      `json:"autoReconnect"`
	WorkerAssigned     string    `json:"workerAssigned"`
	SubscriptionActive bool      `json:"subscriptionActive"`
}

type WebhookSettings struct {
	DeliveryURL         *string `json:"deliveryCallbackUrl,omitempty"`
	ReceivedURL         *string `json:"receivedCallbackUrl,omitempty"`
	ReceivedDeliveryURL *string `json:"receivedAndDeliveryCallbackUrl,omitempty"`
	DisconnectedURL     *string `json:"disconnectedCallbackUrl,omitempty"`
	ConnectedURL        *string `json:"connectedCallbackUrl,omitempty"`
	MessageStatusURL    *string `json:"messageStatusCallbackUrl,omitempty"`
	ChatPresenceURL     *string `json:"presenceChatCallbackUrl,omitempty"`
	NotifySentByMe      bool    `json:"notifySentByMe"`
}

type ProxyConfig struct {
	ProxyURL       *string `json:"proxyUrl,omitempty"`
	HealthStatus   string  `json:"healthStatus,omitempty"`
	HealthFailures int     `json:"healthFailures,omitempty"`
}

// QRCode carries the pairing QR value returned by the upstream.
type QRCode struct {
	Value string `json:"value"`
}

// PhoneCode is the phone-pairing code for a given number.
type PhoneCode struct {
	Code string `json:"code"`
}

// ActionResponse is the normalized envelope for mutating console actions.
type ActionResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ContactRequest is a marketing-site contact form submission.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
