// Package envelope strips notification-service wrappers from ingest payloads.
package envelope

import "encoding/json"

type snsNotification struct {
	Records []snsRecord `json:"Records"`
}

type snsRecord struct {
	Sns *snsMessage `json:"Sns"`
}

type snsMessage struct {
	Message *string `json:"Message"`
}

// Unwrap returns the message of the first SNS record in data.
// ok is false when data is not an SNS notification; callers then use data as is.
func Unwrap(data []byte) (message []byte, ok bool) {
	var n snsNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, false
	}
	if len(n.Records) == 0 || n.Records[0].Sns == nil || n.Records[0].Sns.Message == nil {
		return nil, false
	}
	return []byte(*n.Records[0].Sns.Message), true
}
