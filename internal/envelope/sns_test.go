package envelope

import "testing"

const inner = `{"d":[{"bn":"urn:dev:mac:784b87a58c3d;temp1","bt":1491650201.048,"n":"temp","u":"Cel","v":27.1}],"clientid":"edison-1","timestamp":1491650201148,"topic":"iot/sensordata/prod/json"}`

const wrapped = `{ "Records": [ { "EventSource": "aws:sns", "EventVersion": "1.0", "Sns": { "Type": "Notification", "MessageId": "01ba0176-7c9f-50dc-9feb-5014b445839c", "TopicArn": "arn:aws:sns:ap-southeast-2:858689980767:iot-ingress", "Subject": null, "Message": "{\"d\":[{\"bn\":\"urn:dev:mac:784b87a58c3d;temp1\",\"bt\":1491650201.048,\"n\":\"temp\",\"u\":\"Cel\",\"v\":27.1}],\"clientid\":\"edison-1\",\"timestamp\":1491650201148,\"topic\":\"iot/sensordata/prod/json\"}", "Timestamp": "2017-04-08T11:16:42.226Z", "MessageAttributes": {} } } ]}`

func TestUnwrap_SNSNotification(t *testing.T) {
	msg, ok := Unwrap([]byte(wrapped))
	if !ok {
		t.Fatal("expected notification to be recognised")
	}
	if string(msg) != inner {
		t.Errorf("unexpected message:\n got %s\nwant %s", msg, inner)
	}
}

func TestUnwrap_NotWrapped(t *testing.T) {
	for _, in := range []string{
		inner,
		`{"Records":[]}`,
		`{"Records":[{"EventSource":"aws:sns"}]}`,
		`{"Records":[{"Sns":{"Type":"Notification"}}]}`,
		`not json`,
		``,
	} {
		if msg, ok := Unwrap([]byte(in)); ok {
			t.Errorf("Unwrap(%q) = %q, expected not wrapped", in, msg)
		}
	}
}
