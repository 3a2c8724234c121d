// Package messaging defines interfaces for real-time communication.
package messaging

// Broadcaster defines the interface for managing tail subscribers and fanning
// captured payloads out to them.
type Broadcaster interface {
	AddClient() (chan string, error)
	RemoveClient(ch chan string)
	ClientCount() int
	Broadcast(event string, payload any)
}
