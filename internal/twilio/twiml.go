// Package twilio is the adapter to the telephony provider. It builds TwiML
// voice-markup responses, lists recordings through the provider REST API and
// validates webhook signatures. It performs no logging; callers decide what
// to record.
package twilio

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// ContentType is the media type the provider expects for voice markup.
const ContentType = "text/xml; charset=utf-8"

// Response is a TwiML document. Verbs are rendered in the order they were
// appended. The zero value renders an empty <Response/>, which tells the
// provider to end the current instruction set.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather collects DTMF digits and posts them to Action.
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
}

// Dial bridges the caller to a single Number or Sip target.
type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Record  string   `xml:"record,attr,omitempty"`
	Action  string   `xml:"action,attr,omitempty"`
	Method  string   `xml:"method,attr,omitempty"`
	Number  *Number  `xml:"Number,omitempty"`
	Sip     *Sip     `xml:"Sip,omitempty"`
}

// Number is a PSTN dial target with optional status callbacks.
type Number struct {
	StatusCallback       string `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent  string `xml:"statusCallbackEvent,attr,omitempty"`
	StatusCallbackMethod string `xml:"statusCallbackMethod,attr,omitempty"`
	Value                string `xml:",chardata"`
}

// Sip is a SIP URI dial target with optional status callbacks.
type Sip struct {
	StatusCallback       string `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent  string `xml:"statusCallbackEvent,attr,omitempty"`
	StatusCallbackMethod string `xml:"statusCallbackMethod,attr,omitempty"`
	URI                  string `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Say appends a Say verb.
func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text})
	return r
}

// Gather appends a Gather verb.
func (r *Response) Gather(g Gather) *Response {
	r.Verbs = append(r.Verbs, g)
	return r
}

// Dial appends a Dial verb.
func (r *Response) Dial(d Dial) *Response {
	r.Verbs = append(r.Verbs, d)
	return r
}

// Hangup appends a Hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render encodes the document with an XML header.
func (r *Response) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DialTarget describes where and how a recorded bridge should ring.
type DialTarget struct {
	Address           string // E.164 number or "sip:" URI
	RecordingCallback string // Dial action, receives RecordingUrl when the bridge ends
	StatusCallback    string // receives the dialed leg's terminal status
	StatusEvents      []string
}

// RecordedDial builds a Dial that records from answer. Addresses starting
// with "sip:" use the Sip noun, everything else is treated as a phone number.
func RecordedDial(t DialTarget) Dial {
	events := strings.Join(t.StatusEvents, " ")
	method := ""
	if t.StatusCallback != "" {
		method = "POST"
	}
	d := Dial{
		Record: "record-from-answer",
		Action: t.RecordingCallback,
		Method: "POST",
	}
	if strings.HasPrefix(strings.ToLower(t.Address), "sip:") {
		d.Sip = &Sip{
			StatusCallback:       t.StatusCallback,
			StatusCallbackEvent:  events,
			StatusCallbackMethod: method,
			URI:                  t.Address,
		}
	} else {
		d.Number = &Number{
			StatusCallback:       t.StatusCallback,
			StatusCallbackEvent:  events,
			StatusCallbackMethod: method,
			Value:                t.Address,
		}
	}
	return d
}

// DigitsGather builds a POST Gather for a fixed number of digits.
func DigitsGather(numDigits int, action string) Gather {
	return Gather{NumDigits: numDigits, Action: action, Method: "POST"}
}

// String renders the document, returning the error text on failure. It is
// meant for logs and tests.
func (r *Response) String() string {
	b, err := r.Render()
	if err != nil {
		return "twiml: " + err.Error()
	}
	return string(b)
}

// verbNames lists the top-level verbs, handy for assertions and span attributes.
func (r *Response) verbNames() []string {
	out := make([]string, 0, len(r.Verbs))
	for _, v := range r.Verbs {
		switch v.(type) {
		case Say:
			out = append(out, "Say")
		case Gather:
			out = append(out, "Gather")
		case Dial:
			out = append(out, "Dial")
		case Hangup:
			out = append(out, "Hangup")
		default:
			out = append(out, fmt.Sprintf("%T", v))
		}
	}
	return out
}

// Describe returns a compact "Say,Gather" style summary of the verbs.
func (r *Response) Describe() string {
	return strings.Join(r.verbNames(), ",")
}
