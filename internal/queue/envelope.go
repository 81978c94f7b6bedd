package queue

import (
	"encoding/json"
	"maps"
)

// notification is the JSON envelope SNS wraps around messages delivered to
// SQS subscriptions without raw message delivery.
type notification struct {
	Type              string `json:"Type"`
	MessageID         string `json:"MessageId"`
	TopicArn          string `json:"TopicArn"`
	Message           string `json:"Message"`
	MessageAttributes map[string]struct {
		Type  string `json:"Type"`
		Value string `json:"Value"`
	} `json:"MessageAttributes"`
}

// Unwrap returns msg with any SNS notification envelope removed. Messages
// delivered raw are returned unchanged.
func Unwrap(msg Message) Message {
	var n notification
	if err := json.Unmarshal([]byte(msg.Body), &n); err != nil {
		return msg
	}

	if n.Type != "Notification" || n.TopicArn == "" {
		return msg
	}

	unwrapped := msg
	unwrapped.Body = n.Message
	unwrapped.Attributes = maps.Clone(msg.Attributes)
	if unwrapped.Attributes == nil {
		unwrapped.Attributes = make(map[string]string, len(n.MessageAttributes))
	}
	for k, v := range n.MessageAttributes {
		unwrapped.Attributes[k] = v.Value
	}

	return unwrapped
}
