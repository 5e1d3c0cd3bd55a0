package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      string
	Role        string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}
