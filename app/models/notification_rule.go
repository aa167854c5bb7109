package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RuleChannel is the transport a rule notifies through.
type RuleChannel string

const (
	ChannelEmail    RuleChannel = "email"
	ChannelTelegram RuleChannel = "telegram"
)

// Valid reports whether c is a known channel.
func (c RuleChannel) Valid() bool {
	return c == ChannelEmail || c == ChannelTelegram
}

// NotificationRule maps a Stripe product to one notification destination.
// (product_id, channel, destination) is unique.
type NotificationRule struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ProductID   string      `gorm:"type:varchar(191);not null;index:ux_notification_rules_target,unique,priority:1;index" json:"product_id" validate:"required,max=191"`
	Channel     RuleChannel `gorm:"type:varchar(20);not null;index:ux_notification_rules_target,unique,priority:2" json:"channel" validate:"required,oneof=email telegram"`
	Destination string      `gorm:"type:varchar(191);not null;index:ux_notification_rules_target,unique,priority:3" json:"destination" validate:"required,max=191"`
	Enabled     bool        `gorm:"not null;default:true" json:"enabled"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

var ruleValidate = validator.New()

// Normalize trims user input and lowercases the channel.
func (r *NotificationRule) Normalize() {
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.Channel = RuleChannel(strings.ToLower(strings.TrimSpace(string(r.Channel))))
	r.Destination = strings.TrimSpace(r.Destination)
}

// Validate checks required fields and that email destinations are addresses.
func (r *NotificationRule) Validate() error {
	if err := ruleValidate.Struct(r); err != nil {
		return err
	}
	if r.Channel == ChannelEmail {
		if err := ruleValidate.Var(r.Destination, "email"); err != nil {
			return fmt.Errorf("destination %q is not a valid email address", r.Destination)
		}
	}
	return nil
}
