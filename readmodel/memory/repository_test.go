package memory_test

import (
	"context"

	"github.com/dogmatiq/processkit/internal/testing/repotest"
	. "github.com/dogmatiq/processkit/readmodel/memory"
	. "github.com/onsi/ginkgo/v2"
)

var _ = Describe("type Repository", func() {
	repotest.Declare(
		func(ctx context.Context) repotest.Out {
			return repotest.Out{
				Repository: &Repository{},
			}
		},
		nil,
	)
})
