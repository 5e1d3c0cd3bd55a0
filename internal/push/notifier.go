// Package push triggers best-effort peer notifications through the
// backend's serverless function surface.
package push

import (
	"context"

	"couplespace/internal/models"
	"couplespace/internal/store"
)

// DefaultFunctionName is the backend function that delivers web push.
const DefaultFunctionName = "sendWebPushNotification"

// PeerMessage describes a freshly sent message for the peer's notification.
type PeerMessage struct {
	SenderID     models.Sender      `json:"senderId"`
	SenderLabel  string             `json:"senderLabel,omitempty"`
	MessageType  models.MessageType `json:"messageType"`
	Preview      string             `json:"preview,omitempty"`
	PrivateMedia bool               `json:"privateMedia"`
}

// Notifier invokes the push function. Delivery is fire-and-forget;
// callers ignore failures.
type Notifier struct {
	caller   store.FunctionCaller
	function string
}

// NewNotifier builds a Notifier. An empty function name selects the default.
func NewNotifier(caller store.FunctionCaller, function string) *Notifier {
	if function == "" {
		function = DefaultFunctionName
	}
	return &Notifier{caller: caller, function: function}
}

// NotifyPeerMessage asks the backend to alert the peer about a new message.
func (n *Notifier) NotifyPeerMessage(ctx context.Context, msg PeerMessage) error {
	return n.caller.Call(ctx, n.function, msg)
}
