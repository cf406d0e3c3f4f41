package transporttest

import (
	"context"
	"time"

	"github.com/dogmatiq/processkit/transport"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// Out is a container for values that are provided by the broker-specific
// "before" function to the test-suite.
type Out struct {
	// Broker is the broker to be tested.
	Broker transport.Broker

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration

	// AssumeBlockingDuration specifies how long the tests should wait before
	// assuming a call to Subscription.Next() is blocking, waiting for a new
	// message.
	AssumeBlockingDuration time.Duration
}

const (
	// DefaultTestTimeout is the default test timeout.
	DefaultTestTimeout = 3 * time.Second

	// DefaultAssumeBlockingDuration is the default "assumed blocking duration".
	DefaultAssumeBlockingDuration = 150 * time.Millisecond
)

// Declare declares generic behavioral tests for a specific broker
// implementation.
func Declare(
	before func(context.Context) Out,
	after func(),
) {
	var (
		ctx    context.Context
		cancel func()
		out    Out
		topic  string
	)

	ginkgo.BeforeEach(func() {
		setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelSetup()

		out = before(setupCtx)

		if out.TestTimeout <= 0 {
			out.TestTimeout = DefaultTestTimeout
		}

		if out.AssumeBlockingDuration <= 0 {
			out.AssumeBlockingDuration = DefaultAssumeBlockingDuration
		}

		topic = "processkit.test." + ginkgo.CurrentSpecReport().LeafNodeText

		ctx, cancel = context.WithTimeout(context.Background(), out.TestTimeout)
	})

	ginkgo.AfterEach(func() {
		if after != nil {
			after()
		}

		if cancel != nil {
			cancel()
		}
	})

	ginkgo.Describe("type Broker (interface)", func() {
		ginkgo.Describe("func Publish()", func() {
			ginkgo.It("delivers the message to every subscriber", func() {
				sub1, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer sub1.Close()

				sub2, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer sub2.Close()

				m := transport.Message{
					Headers:   map[string]string{"<key>": "<value>"},
					MediaType: "application/json",
					Data:      []byte(`{"value":1}`),
				}

				err = out.Broker.Publish(ctx, topic, m)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				for _, sub := range []transport.Subscription{sub1, sub2} {
					d, err := sub.Next(ctx)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

					v, ok := d.Header("<key>")
					gomega.Expect(ok).To(gomega.BeTrue())
					gomega.Expect(v).To(gomega.Equal("<value>"))

					received, err := d.Message()
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
					gomega.Expect(received).To(gomega.Equal(m))
				}
			})

			ginkgo.It("does not deliver messages published to other topics", func() {
				sub, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer sub.Close()

				err = out.Broker.Publish(ctx, topic+".other", transport.Message{
					MediaType: "text/plain",
					Data:      []byte("<other>"),
				})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = out.Broker.Publish(ctx, topic, transport.Message{
					MediaType: "text/plain",
					Data:      []byte("<this>"),
				})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				d, err := sub.Next(ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				m, err := d.Message()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(m.Data).To(gomega.Equal([]byte("<this>")))
			})

			ginkgo.It("does not fail when there are no subscribers", func() {
				err := out.Broker.Publish(ctx, topic, transport.Message{
					MediaType: "text/plain",
				})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			})

			ginkgo.It("delivers messages in the order they are published", func() {
				sub, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer sub.Close()

				for _, v := range []string{"<a>", "<b>", "<c>"} {
					err := out.Broker.Publish(ctx, topic, transport.Message{
						MediaType: "text/plain",
						Data:      []byte(v),
					})
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				}

				for _, v := range []string{"<a>", "<b>", "<c>"} {
					d, err := sub.Next(ctx)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

					m, err := d.Message()
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
					gomega.Expect(string(m.Data)).To(gomega.Equal(v))
				}
			})
		})

		ginkgo.Describe("func Subscribe()", func() {
			ginkgo.It("blocks until a message is published", func() {
				sub, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer sub.Close()

				go func() {
					defer ginkgo.GinkgoRecover()
					time.Sleep(out.AssumeBlockingDuration)

					err := out.Broker.Publish(ctx, topic, transport.Message{
						MediaType: "text/plain",
						Data:      []byte("<late>"),
					})
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				}()

				d, err := sub.Next(ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				m, err := d.Message()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(m.Data).To(gomega.Equal([]byte("<late>")))
			})

			ginkgo.It("returns an error if the context is canceled while waiting", func() {
				sub, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer sub.Close()

				waitCtx, cancelWait := context.WithTimeout(ctx, out.AssumeBlockingDuration)
				defer cancelWait()

				_, err = sub.Next(waitCtx)
				gomega.Expect(err).To(gomega.Equal(context.DeadlineExceeded))
			})

			ginkgo.It("returns an error if the subscription is closed", func() {
				sub, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = sub.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = sub.Next(ctx)
				gomega.Expect(err).To(gomega.Equal(transport.ErrSubscriptionClosed))
			})
		})

		ginkgo.Describe("func Close()", func() {
			ginkgo.It("does not return an error if the subscription is already closed", func() {
				sub, err := out.Broker.Subscribe(ctx, topic)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				gomega.Expect(sub.Close()).To(gomega.Succeed())
				gomega.Expect(sub.Close()).To(gomega.Succeed())
			})
		})
	})
}
