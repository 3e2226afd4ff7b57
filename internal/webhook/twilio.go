package webhook

import (
	"net/http"
	"strconv"

	"github.com/voxaide/switchboard/internal/provider"
)

// twilioForm captures the subset of Twilio voice webhook fields the service
// cares about. Twilio sends application/x-www-form-urlencoded by default.
type twilioForm struct {
	CallSid           string
	From              string
	To                string
	CallStatus        string
	CallDuration      string
	RecordingURL      string
	TranscriptionText string
}

func parseTwilioForm(request *http.Request) (twilioForm, error) {
	if err := request.ParseForm(); err != nil {
		return twilioForm{}, ErrMalformedPayload
	}

	return twilioForm{
		CallSid:           request.PostFormValue("CallSid"),
		From:              request.PostFormValue("From"),
		To:                request.PostFormValue("To"),
		CallStatus:        request.PostFormValue("CallStatus"),
		CallDuration:      request.PostFormValue("CallDuration"),
		RecordingURL:      request.PostFormValue("RecordingUrl"),
		TranscriptionText: request.PostFormValue("TranscriptionText"),
	}, nil
}

// NormalizeTwilioEvent reduces a Twilio webhook to the internal Event. The
// kind is inferred from which fields Twilio populated: recording and
// transcription callbacks carry their payload fields, everything else is a
// status change, and a status-less post is an inbound call.
func NormalizeTwilioEvent(request *http.Request) (Event, error) {
	form, err := parseTwilioForm(request)
	if err != nil {
		return Event{}, err
	}

	if form.CallSid == "" {
		return Event{}, ErrMissingCallID
	}

	event := Event{
		Vendor: provider.VendorTwilio,
		CallID: form.CallSid,
		From:   form.From,
		To:     form.To,
	}

	switch {
	case form.RecordingURL != "":
		event.Kind = KindRecording
		event.RecordingURL = form.RecordingURL
	case form.TranscriptionText != "":
		event.Kind = KindTranscription
		event.Transcript = form.TranscriptionText
	case form.CallStatus != "":
		event.Kind = KindStatus
		event.Status = provider.FromTwilioStatus(form.CallStatus)

		if form.CallDuration != "" {
			if seconds, err := strconv.Atoi(form.CallDuration); err == nil {
				event.DurationSeconds = &seconds
			}
		}
	default:
		event.Kind = KindIncoming
	}

	return event, nil
}
