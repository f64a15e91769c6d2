package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Devices []SubscribedDevice `gorm:"foreignKey:PushSubscriptionEndpoint;constraint:OnDelete:CASCADE"`
}

// SubscribedDevice maps a push subscription to an upstream device id. Devices
// themselves live in the in-memory resource stores, so the mapping carries the
// bare id rather than a foreign key into a local table.
type SubscribedDevice struct {
	PushSubscriptionEndpoint string `gorm:"primaryKey"`
	DeviceID                 int    `gorm:"primaryKey"`
}
