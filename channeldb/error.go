package channeldb

import "fmt"

var (
	// ErrGraphNodeNotFound is returned when a node lookup fails because
	// no node with that identity key is currently in the graph.
	ErrGraphNodeNotFound = fmt.Errorf("unable to find node")

	// ErrEdgeNotFound is returned when a channel lookup fails because no
	// channel with that short channel ID exists in the graph.
	ErrEdgeNotFound = fmt.Errorf("edge for chanID not found")

	// ErrSourceNodeNotSet is returned when an operation that requires the
	// local node's identity is attempted before SetSourceNode is called.
	ErrSourceNodeNotSet = fmt.Errorf("source node does not exist")
)
