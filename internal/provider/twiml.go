package provider

import (
	"bytes"
	"encoding/xml"

	"github.com/voxaide/switchboard/internal/config"
)

// Minimal TwiML builder covering the verbs the adapter needs; no SDK
// dependency at the voice-response boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName xml.Name `xml:"Gather"`
	Input   string   `xml:"input,attr,omitempty"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Say     *twimlSay
}

type twimlRecord struct {
	XMLName    xml.Name `xml:"Record"`
	Transcribe bool     `xml:"transcribe,attr"`
	MaxLength  int      `xml:"maxLength,attr,omitempty"`
	PlayBeep   bool     `xml:"playBeep,attr"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

const (
	gatherTimeoutSeconds  = 5
	recordMaxLengthSecond = 3600
)

func renderTwiML(opts ResponseOptions) (string, error) {
	var r twimlResponse

	say := &twimlSay{
		Voice:    config.Conf.DefaultVoice,
		Language: config.Conf.DefaultLanguage,
		Text:     opts.Message,
	}

	switch {
	case opts.GatherInput:
		r.Verbs = append(r.Verbs, twimlGather{
			Input:   "speech dtmf",
			Timeout: gatherTimeoutSeconds,
			Say:     say,
		})
	case opts.Message != "":
		r.Verbs = append(r.Verbs, *say)
	default:
		r.Verbs = append(r.Verbs, twimlPause{Length: 1})
	}

	if opts.RecordingEnabled {
		r.Verbs = append(r.Verbs, twimlRecord{
			Transcribe: opts.TranscriptionEnabled,
			MaxLength:  recordMaxLengthSecond,
			PlayBeep:   false,
		})
	}

	var buf bytes.Buffer

	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	err := enc.Encode(r)
	if err != nil {
		return "", err
	}

	err = enc.Flush()
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
