package memory_test

import (
	"context"
	"time"

	"github.com/dogmatiq/processkit/internal/testing/transporttest"
	"github.com/dogmatiq/processkit/transport"
	. "github.com/dogmatiq/processkit/transport/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Broker (standard test suite)", func() {
	transporttest.Declare(
		func(ctx context.Context) transporttest.Out {
			return transporttest.Out{
				Broker: &Broker{},
			}
		},
		nil,
	)
})

var _ = Describe("type Broker", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		broker *Broker
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		broker = &Broker{BufferSize: 1}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Publish()", func() {
		It("gives each subscriber its own copy of the headers", func() {
			sub1, err := broker.Subscribe(ctx, "<topic>")
			Expect(err).ShouldNot(HaveOccurred())
			defer sub1.Close()

			sub2, err := broker.Subscribe(ctx, "<topic>")
			Expect(err).ShouldNot(HaveOccurred())
			defer sub2.Close()

			err = broker.Publish(ctx, "<topic>", transport.Message{
				Headers: map[string]string{"<key>": "<value>"},
			})
			Expect(err).ShouldNot(HaveOccurred())

			d1, err := sub1.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			m1, _ := d1.Message()
			m1.Headers["<key>"] = "<changed>"

			d2, err := sub2.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			v, _ := d2.Header("<key>")
			Expect(v).To(Equal("<value>"))
		})

		It("blocks while a subscriber's buffer is full", func() {
			sub, err := broker.Subscribe(ctx, "<topic>")
			Expect(err).ShouldNot(HaveOccurred())
			defer sub.Close()

			err = broker.Publish(ctx, "<topic>", transport.Message{})
			Expect(err).ShouldNot(HaveOccurred())

			publishCtx, cancelPublish := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancelPublish()

			err = broker.Publish(publishCtx, "<topic>", transport.Message{})
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("does not deliver to closed subscriptions", func() {
			sub, err := broker.Subscribe(ctx, "<topic>")
			Expect(err).ShouldNot(HaveOccurred())
			sub.Close()

			err = broker.Publish(ctx, "<topic>", transport.Message{})
			Expect(err).ShouldNot(HaveOccurred())

			err = broker.Publish(ctx, "<topic>", transport.Message{})
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("func Subscribe()", func() {
		It("returns an error if the context is already canceled", func() {
			cancel()

			_, err := broker.Subscribe(ctx, "<topic>")
			Expect(err).To(Equal(context.Canceled))
		})
	})
})
