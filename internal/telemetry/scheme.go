package telemetry

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies what a bus topic carries.
type Kind int

const (
	// KindUnknown marks a topic whose telemetry kind token is not
	// recognised. Messages on such topics are dropped after a debug log.
	KindUnknown Kind = iota

	// KindSensor marks periodic sensor reports (power, voltage, energy).
	KindSensor

	// KindState marks periodic status reports (on/off, uptime, wifi).
	KindState

	// KindLastWill marks broker-published liveness strings. These carry
	// no numeric telemetry and never enter the pairing pipeline.
	KindLastWill
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindSensor:
		return "sensor"
	case KindState:
		return "state"
	case KindLastWill:
		return "lwt"
	default:
		return "unknown"
	}
}

// Scheme maps bus topics to devices and telemetry kinds.
//
// Implementations must be pure: Parse has no side effects beyond optional
// debug logging in the regex variant.
type Scheme interface {
	// Parse classifies a topic and extracts the device identifier.
	// ok is false when no device can be derived from the topic at all;
	// such messages are unroutable.
	Parse(topic string) (kind Kind, device string, ok bool)

	// DeviceTopics returns the canonical topics to pre-register in the
	// registry's topic index for a device. May return nil when canonical
	// topics cannot be constructed; the registry then indexes topics as
	// they are observed.
	DeviceTopics(device string) []string

	// SubscriptionFilter returns the bus filter covering every topic
	// this scheme can parse.
	SubscriptionFilter() string
}

// Topic suffix tokens used by the relay firmware.
const (
	suffixSensor   = "SENSOR"
	suffixState    = "STATE"
	suffixLastWill = "LWT"
)

func kindForToken(token string) Kind {
	switch token {
	case suffixSensor:
		return KindSensor
	case suffixState:
		return KindState
	case suffixLastWill:
		return KindLastWill
	default:
		return KindUnknown
	}
}

// FixedScheme parses topics of the form prefix/<device>/SUFFIX where
// SUFFIX is SENSOR, STATE or LWT. The device segment may itself contain
// slashes (e.g. "garage/plug").
type FixedScheme struct {
	prefix string
}

// NewFixedScheme creates a fixed-format scheme rooted at the given
// topic prefix, e.g. "tasmota/tele".
func NewFixedScheme(prefix string) *FixedScheme {
	return &FixedScheme{prefix: strings.TrimRight(prefix, "/")}
}

// Parse implements Scheme.
func (s *FixedScheme) Parse(topic string) (Kind, string, bool) {
	rest, found := strings.CutPrefix(topic, s.prefix+"/")
	if !found {
		return KindUnknown, "", false
	}
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 {
		return KindUnknown, "", false
	}
	device := rest[:idx]
	return kindForToken(rest[idx+1:]), device, true
}

// DeviceTopics implements Scheme, returning the three canonical topics.
func (s *FixedScheme) DeviceTopics(device string) []string {
	return []string{
		s.prefix + "/" + device + "/" + suffixSensor,
		s.prefix + "/" + device + "/" + suffixState,
		s.prefix + "/" + device + "/" + suffixLastWill,
	}
}

// SubscriptionFilter implements Scheme.
func (s *FixedScheme) SubscriptionFilter() string {
	return s.prefix + "/#"
}

// RegexScheme extracts the device identifier and kind token with two
// configured regular expressions. Used when the broker topic layout does
// not follow the fixed prefix/<device>/SUFFIX shape.
type RegexScheme struct {
	deviceRe *regexp.Regexp
	kindRe   *regexp.Regexp
	filter   string
	logger   Logger
}

// NewRegexScheme compiles the device and kind patterns. devicePattern
// must contain a capture group named "device_id"; kindPattern a group
// named "kind" yielding one of the SENSOR/STATE/LWT tokens.
//
// Returns:
//   - *RegexScheme: Compiled scheme
//   - error: If either pattern does not compile or lacks its named group
func NewRegexScheme(devicePattern, kindPattern, filter string, logger Logger) (*RegexScheme, error) {
	deviceRe, err := regexp.Compile(devicePattern)
	if err != nil {
		return nil, fmt.Errorf("telemetry: device pattern: %w", err)
	}
	if deviceRe.SubexpIndex("device_id") < 0 {
		return nil, fmt.Errorf("telemetry: device pattern missing device_id group")
	}
	kindRe, err := regexp.Compile(kindPattern)
	if err != nil {
		return nil, fmt.Errorf("telemetry: kind pattern: %w", err)
	}
	if kindRe.SubexpIndex("kind") < 0 {
		return nil, fmt.Errorf("telemetry: kind pattern missing kind group")
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &RegexScheme{
		deviceRe: deviceRe,
		kindRe:   kindRe,
		filter:   filter,
		logger:   logger,
	}, nil
}

// Parse implements Scheme.
func (s *RegexScheme) Parse(topic string) (Kind, string, bool) {
	m := s.deviceRe.FindStringSubmatch(topic)
	if m == nil {
		return KindUnknown, "", false
	}
	device := m[s.deviceRe.SubexpIndex("device_id")]
	if device == "" {
		return KindUnknown, "", false
	}

	km := s.kindRe.FindStringSubmatch(topic)
	if km == nil {
		return KindUnknown, device, true
	}
	token := km[s.kindRe.SubexpIndex("kind")]
	kind := kindForToken(token)
	if kind == KindUnknown {
		s.logger.Debug("unrecognised telemetry kind token",
			"topic", topic,
			"token", token)
	}
	return kind, device, true
}

// DeviceTopics implements Scheme. Canonical topics cannot be derived
// from a match pattern, so the registry indexes topics as observed.
func (s *RegexScheme) DeviceTopics(string) []string {
	return nil
}

// SubscriptionFilter implements Scheme.
func (s *RegexScheme) SubscriptionFilter() string {
	return s.filter
}
