package outbound

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/LeopoldLabs/InterShareSDK/internal/qrgen"
	"github.com/LeopoldLabs/InterShareSDK/internal/secutls"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

const convenienceHost = "s.intershare.app"

// ErrNotAValidLink is returned by ParseConvenienceLink for malformed or
// mismatched-host URLs, per spec.md §7's LinkParseFailure taxonomy.
var ErrNotAValidLink = errors.New("outbound: not a valid convenience link")

// ConvenienceLink renders spec.md §4.J's "convenience link" for this
// session, gated on allowConvenienceShare and a TCP binding actually
// existing (there's no point advertising a link nobody can dial).
func (s *ShareSession) ConvenienceLink(allowConvenienceShare bool, tcpIP string, tcpPort uint16) (string, bool) {
	if !allowConvenienceShare || tcpIP == "" || tcpPort == 0 {
		return "", false
	}
	v := url.Values{}
	v.Set("i", s.RequestID)
	v.Set("ip", tcpIP)
	v.Set("p", strconv.Itoa(int(tcpPort)))
	v.Set("d", s.Self.ID)
	u := url.URL{Scheme: "https", Host: convenienceHost, RawQuery: v.Encode()}
	return u.String(), true
}

// GenerateQRCode renders link as a 300px-wide PNG, delegating the actual QR
// encoding to internal/qrgen (which draws square modules, not circular
// ones).
func GenerateQRCode(link string, darkMode bool) ([]byte, error) {
	return qrgen.Render(link, qrgen.Options{DarkMode: darkMode, WidthPx: 300})
}

// parsedConvenienceLink is the decoded form of a convenience URL.
type parsedConvenienceLink struct {
	RequestID string
	IP        string
	Port      uint16
	DeviceID  string
}

// ParseConvenienceLink validates link's host and required query keys, per
// spec.md §4.J's request_download and §6's "Host string must match exactly"
// rule.
func ParseConvenienceLink(link string) (parsedConvenienceLink, error) {
	u, err := url.Parse(link)
	if err != nil {
		return parsedConvenienceLink{}, fmt.Errorf("%w: %v", ErrNotAValidLink, err)
	}
	if u.Host != convenienceHost {
		return parsedConvenienceLink{}, ErrNotAValidLink
	}
	q := u.Query()
	id, ip, port := q.Get("i"), q.Get("ip"), q.Get("p")
	if id == "" || ip == "" || port == "" {
		return parsedConvenienceLink{}, ErrNotAValidLink
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return parsedConvenienceLink{}, fmt.Errorf("%w: bad port", ErrNotAValidLink)
	}
	return parsedConvenienceLink{RequestID: id, IP: ip, Port: uint16(portNum), DeviceID: q.Get("d")}, nil
}

// RequestDownload implements spec.md §4.J's request_download: parse the
// link, dial its embedded TCP endpoint directly (bypassing the discovery
// registry, since a convenience link already carries everything needed to
// connect), and send a ConvenienceDownloadRequest carrying share_id.
func RequestDownload(ctx context.Context, link string) error {
	parsed, err := ParseConvenienceLink(link)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(parsed.IP, strconv.Itoa(int(parsed.Port)))
	dialer := net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("outbound: dial convenience endpoint: %w", err)
	}

	stream, err := secutls.WrapClient(raw)
	if err != nil {
		return fmt.Errorf("outbound: tls to convenience endpoint: %w", err)
	}
	defer stream.Close()

	req := wire.Request{
		Type:    wire.ConvenienceDownloadRequest,
		ShareID: &parsed.RequestID,
	}
	if err := wire.WriteRecord(stream, req); err != nil {
		return fmt.Errorf("outbound: send convenience request: %w", err)
	}
	// No response path is specified for v0 (spec.md §9); the caller's only
	// signal is whether the request was sent.
	return nil
}
