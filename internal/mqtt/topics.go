// internal/mqtt/topics.go
package mqtt

import "strings"

// Topics names every topic of one controller.
//
//	<prefix>/<node>/bridge               online|offline (LWT)
//	<prefix>/<node>/availability         online once data exists
//	<prefix>/<node>/<entity>/<attr>      state
//	<prefix>/<node>/<entity>/<attr>/set  command
//	<discovery>/<component>/<node>/<object>/config
type Topics struct {
	Discovery string
	Base      string // <prefix>/<node>
	Node      string
}

func NewTopics(discoveryPrefix, topicPrefix, nodeID string) Topics {
	return Topics{
		Discovery: strings.Trim(discoveryPrefix, "/"),
		Base:      strings.Trim(topicPrefix, "/") + "/" + nodeID,
		Node:      nodeID,
	}
}

func (t Topics) Bridge() string       { return t.Base + "/bridge" }
func (t Topics) Availability() string { return t.Base + "/availability" }

// State returns <base>/<parts...>.
func (t Topics) State(parts ...string) string {
	return t.Base + "/" + strings.Join(parts, "/")
}

// Command returns <base>/<parts...>/set.
func (t Topics) Command(parts ...string) string {
	return t.State(parts...) + "/set"
}

func (t Topics) Config(component, object string) string {
	return t.Discovery + "/" + component + "/" + t.Node + "/" + object + "/config"
}
