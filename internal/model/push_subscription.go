package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Rooms     []string  `gorm:"serializer:json"` // empty follows every room
	CreatedAt time.Time `gorm:"not null"`
}

// Follows reports whether the subscription wants events for room.
func (p *PushSubscription) Follows(room string) bool {
	if len(p.Rooms) == 0 {
		return true
	}
	for _, r := range p.Rooms {
		if r == room {
			return true
		}
	}
	return false
}
