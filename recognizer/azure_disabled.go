//go:build !azure

package recognizer

import "fmt"

const azureEnabled = false

func newAzure(Config) (Service, error) {
	return nil, fmt.Errorf("%w: built without azure support (rebuild with -tags azure)", ErrNotAvailable)
}
