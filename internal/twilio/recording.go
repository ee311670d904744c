package twilio

import (
	"strings"
	"time"
)

// DefaultBaseURL is the provider REST host. Recording media is served from
// the same host as the metadata resource.
const DefaultBaseURL = "https://api.twilio.com"

// Recording is provider-owned recording metadata. It is never persisted
// locally; the router joins it with call records at query time.
type Recording struct {
	Sid         string
	CallSid     string
	DateCreated time.Time
	Duration    string
	Status      string
	URI         string // metadata resource path, ends in ".json"
	MediaURL    string // public audio URL derived from URI
}

// RecordingFilter narrows a recordings listing.
//
// Dates are calendar days ("2006-01-02") passed through untouched; the
// provider decides which timezone a day boundary falls in. Limit 0 means
// "every matching recording" and makes the client walk all pages.
type RecordingFilter struct {
	DateCreatedAfter  string
	DateCreatedBefore string
	Page              int
	Limit             int
}

// MediaURL turns a recording metadata URI into its audio URL by swapping the
// ".json" suffix for ".mp3" and prefixing the provider host.
func MediaURL(base, uri string) string {
	if uri == "" {
		return ""
	}
	if strings.HasSuffix(uri, ".json") {
		uri = strings.TrimSuffix(uri, ".json") + ".mp3"
	} else {
		uri = strings.Replace(uri, ".json", ".mp3", 1)
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(uri, "/")
}

// recordingJSON mirrors one element of the provider's "recordings" array.
type recordingJSON struct {
	Sid         string  `json:"sid"`
	CallSid     string  `json:"call_sid"`
	DateCreated string  `json:"date_created"`
	Duration    *string `json:"duration"`
	Status      string  `json:"status"`
	URI         string  `json:"uri"`
}

// recordingsPage mirrors the provider list envelope.
type recordingsPage struct {
	Recordings  []recordingJSON `json:"recordings"`
	NextPageURI *string         `json:"next_page_uri"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
}

// providerTimeLayout is the RFC 2822 form the provider uses for date_created.
const providerTimeLayout = time.RFC1123Z

func (r recordingJSON) toRecording(mediaBase string) Recording {
	out := Recording{
		Sid:      r.Sid,
		CallSid:  r.CallSid,
		Status:   r.Status,
		URI:      r.URI,
		MediaURL: MediaURL(mediaBase, r.URI),
	}
	if r.Duration != nil {
		out.Duration = *r.Duration
	}
	if ts, err := time.Parse(providerTimeLayout, r.DateCreated); err == nil {
		out.DateCreated = ts.UTC()
	} else if ts, err := time.Parse(time.RFC3339, r.DateCreated); err == nil {
		out.DateCreated = ts.UTC()
	}
	return out
}
