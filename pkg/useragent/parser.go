package useragent

import (
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
)

// Parser wraps the uap-go parser with coarse device classification.
type Parser struct {
	parser *uaparser.Parser
}

// DeviceInfo represents parsed device information
type DeviceInfo struct {
	DeviceType string // mobile, desktop, tablet, bot, unknown
	Browser    string // Chrome, Firefox, Safari, etc.
	OS         string // Windows, iOS, Android, etc.
}

// NewParser builds a parser from the regex definitions bundled with uap-go.
// Building compiles a few thousand expressions, so share one instance.
func NewParser() *Parser {
	return &Parser{parser: uaparser.NewFromSaved()}
}

// Parse classifies a User-Agent header. Empty input yields "unknown" fields.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{DeviceType: "unknown", Browser: "unknown", OS: "unknown"}
	}

	client := p.parser.Parse(userAgent)
	return DeviceInfo{
		DeviceType: deviceType(client, userAgent),
		Browser:    familyOr(client.UserAgent.Family),
		OS:         familyOr(client.Os.Family),
	}
}

func familyOr(family string) string {
	if family == "" || family == "Other" {
		return "unknown"
	}
	return family
}

func deviceType(client *uaparser.Client, raw string) string {
	lower := strings.ToLower(raw)
	device := strings.ToLower(client.Device.Family)
	osFamily := strings.ToLower(client.Os.Family)

	switch {
	case device == "spider" || strings.Contains(lower, "bot") || strings.Contains(lower, "crawler"):
		return "bot"
	case strings.Contains(device, "ipad") || strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(device, "iphone") || strings.Contains(lower, "mobile") ||
		osFamily == "android" || osFamily == "ios":
		return "mobile"
	case osFamily == "windows" || osFamily == "mac os x" || osFamily == "linux" ||
		osFamily == "ubuntu" || osFamily == "chrome os":
		return "desktop"
	default:
		return "unknown"
	}
}
