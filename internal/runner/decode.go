package runner

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	thoughtRe  = regexp.MustCompile(`(?s)<thought>(.*?)</thought>`)
	responseRe = regexp.MustCompile(`(?s)<response>(.*?)</response>`)
)

// Decoded is a reply split into its visible answer and optional reasoning.
type Decoded struct {
	Text     string
	Thinking string
	// Fallback is true when no response section was found and Text was derived
	// from the raw reply.
	Fallback bool
}

type structuredReply struct {
	Thought  string `json:"thought"`
	Response string `json:"response"`
}

// Decode extracts thinking and answer from a tagged model reply. The first <thought>
// and <response> sections are used; when <response> is missing the answer is the raw
// text with the first thought section removed.
func Decode(raw string) Decoded {
	var d Decoded
	thought := thoughtRe.FindStringSubmatchIndex(raw)
	if thought != nil {
		d.Thinking = strings.TrimSpace(raw[thought[2]:thought[3]])
	}

	if m := responseRe.FindStringSubmatch(raw); m != nil {
		d.Text = strings.TrimSpace(m[1])
		return d
	}

	d.Fallback = true
	rest := raw
	if thought != nil {
		rest = raw[:thought[0]] + raw[thought[1]:]
	}
	d.Text = strings.TrimSpace(rest)
	return d
}

// DecodeStructured prefers a JSON object with a non-empty "response" field and falls
// back to Decode. Use it only when structured output was requested.
func DecodeStructured(raw string) Decoded {
	if d, ok := decodeStructured(raw); ok {
		return d
	}
	return Decode(raw)
}

func decodeStructured(raw string) (Decoded, bool) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "{") {
		return Decoded{}, false
	}
	var r structuredReply
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Decoded{}, false
	}
	if strings.TrimSpace(r.Response) == "" {
		return Decoded{}, false
	}
	return Decoded{Text: strings.TrimSpace(r.Response), Thinking: strings.TrimSpace(r.Thought)}, true
}
