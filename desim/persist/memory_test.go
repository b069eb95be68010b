package persist_test

import (
	"testing"

	"github.com/lattice-sim/desim/desim/persist"
)

func TestMemBackend(t *testing.T) {
	exerciseBackend(t, persist.NewMemBackend())
}
