package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "secretgate"

// Topics builds the MQTT topics secretgate publishes to.
//
// All topics hang off a single configurable prefix:
//
//	topics := mqtt.Topics{Prefix: "secretgate"}
//	topics.AuthEvent("login")   // "secretgate/auth/event/login"
//	topics.SystemStatus()       // "secretgate/system/status"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// AuthEvent returns the topic for a single authentication event type.
//
// Example: secretgate/auth/event/register
func (t Topics) AuthEvent(eventType string) string {
	return fmt.Sprintf("%s/auth/event/%s", t.prefix(), eventType)
}

// AllAuthEvents returns a wildcard matching every auth event type.
func (t Topics) AllAuthEvents() string {
	return t.prefix() + "/auth/event/+"
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
