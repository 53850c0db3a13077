package session

import (
	"strings"

	ua "github.com/mileusna/useragent"
)

// Device describes the client a session belongs to, derived from the
// User-Agent header. It exists so account holders can recognize their own
// sessions in a listing. Empty fields mean unknown. Nothing here is
// trusted for authorization decisions.
type Device struct {
	Browser string
	OS      string
	Name    string
}

// ClassifyDevice parses a raw User-Agent into a display descriptor.
// Classification is best-effort: unrecognized or empty input yields zero
// fields, never an error.
func ClassifyDevice(rawUA string) Device {
	rawUA = strings.TrimSpace(rawUA)
	if rawUA == "" {
		return Device{}
	}
	parsed := ua.Parse(rawUA)
	return Device{
		Browser: browserLabel(parsed),
		OS:      parsed.OS,
		Name:    deviceLabel(parsed),
	}
}

// browserLabel keeps the major version only; "Chrome 126" reads better in
// a session listing than a full build string.
func browserLabel(p ua.UserAgent) string {
	if p.Name == "" {
		return ""
	}
	ver := p.Version
	if i := strings.IndexByte(ver, '.'); i > 0 {
		ver = ver[:i]
	}
	if ver == "" {
		return p.Name
	}
	return p.Name + " " + ver
}

func deviceLabel(p ua.UserAgent) string {
	if p.Device != "" {
		return p.Device
	}
	switch {
	case p.Mobile:
		return "Mobile"
	case p.Tablet:
		return "Tablet"
	case p.Desktop:
		return "Desktop"
	case p.Bot:
		return "Bot"
	default:
		return ""
	}
}
