package savetool

import (
	"github.com/eldermoor/saveline/internal/archive/storage"
)

// closableColdStore extends ColdStore with a Close method for resource cleanup.
// HotStore already carries Close for connection-holding implementations.
type closableColdStore interface {
	storage.ColdStore
	Close() error
}
