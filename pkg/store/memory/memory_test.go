package memory

import (
	"testing"

	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/artifact/artifacttest"
)

func TestStore(t *testing.T) {
	artifacttest.Run(t, func(t *testing.T) artifact.Store { return New() })
}
