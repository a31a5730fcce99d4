package mqtt

// Topic prefixes for topics the collector itself publishes to.
// Device telemetry topics come from config (telemetry.topic_prefix) and
// the telemetry package's topic scheme, not from here.
const (
	// TopicPrefixSystem is the base for collector liveness topics.
	TopicPrefixSystem = "graymeter/system"
)

// Topics provides builders for Gray Meter MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// SystemStatus returns the collector's own status topic.
//
// Online/offline payloads and the Last Will and Testament are published
// here so dashboards can tell whether the collector is running.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
