package readmodel_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/event"
	. "github.com/dogmatiq/processkit/fixtures"
	. "github.com/dogmatiq/processkit/readmodel"
	"github.com/dogmatiq/processkit/readmodel/memory"
	"github.com/dogmatiq/processkit/transport"
	transportmemory "github.com/dogmatiq/processkit/transport/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Projector", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		repo      *RepositoryStub
		projector *Projector
		now       time.Time
	)

	delivery := func(e event.Event) *DeliveryStub {
		m, err := event.Marshal(Marshaler, e)
		Expect(err).ShouldNot(HaveOccurred())
		return &DeliveryStub{Msg: m}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		repo = &RepositoryStub{Repository: &memory.Repository{}}
		projector = &Projector{
			Marshaler:    Marshaler,
			Repository:   repo,
			ApplyBackoff: backoff.Constant(1 * time.Millisecond),
			Logger:       logging.DiscardLogger{},
			Now:          func() time.Time { return now },
		}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Handle()", func() {
		It("saves updated process instances", func() {
			err := projector.Handle(ctx, delivery(event.ProcessInstanceUpdated{
				Instance: command.ProcessInstance{
					ID:       "<instance>",
					ParentID: "<parent>",
					Status:   command.Suspended,
				},
			}))
			Expect(err).ShouldNot(HaveOccurred())

			pi, ok, err := repo.Load(ctx, "<instance>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pi).To(Equal(&ProcessInstance{
				ID:           "<instance>",
				ParentID:     "<parent>",
				Status:       command.Suspended,
				LastModified: now,
			}))
		})

		It("removes deleted process instances", func() {
			Expect(repo.Save(ctx, &ProcessInstance{ID: "<instance>"})).To(Succeed())

			err := projector.Handle(ctx, delivery(event.ProcessInstanceDeleted{
				ProcessInstanceID: "<instance>",
			}))
			Expect(err).ShouldNot(HaveOccurred())

			_, ok, err := repo.Load(ctx, "<instance>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("skips events that can not be decoded", func() {
			d := delivery(event.ProcessInstanceDeleted{ProcessInstanceID: "<instance>"})
			d.Msg.MediaType = "application/x-unknown"

			repo.DeleteFunc = func(context.Context, string) error {
				Fail("unexpected call")
				return nil
			}

			err := projector.Handle(ctx, d)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("retries if the event can not be applied", func() {
			failures := 2
			repo.DeleteFunc = func(context.Context, string) error {
				if failures > 0 {
					failures--
					return errors.New("<error>")
				}
				return nil
			}

			err := projector.Handle(ctx, delivery(event.ProcessInstanceDeleted{ProcessInstanceID: "<instance>"}))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(failures).To(BeZero())
		})

		It("returns an error if the event can not be applied after retrying", func() {
			projector.ApplyAttempts = 2
			repo.DeleteFunc = func(context.Context, string) error {
				return errors.New("<error>")
			}

			err := projector.Handle(ctx, delivery(event.ProcessInstanceDeleted{ProcessInstanceID: "<instance>"}))
			Expect(err).To(MatchError("<error>"))
		})
	})

	Describe("func Run()", func() {
		It("applies events published to the event topic", func() {
			broker := &transportmemory.Broker{}
			projector.Subscriber = broker

			runCtx, cancelRun := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				done <- projector.Run(runCtx)
			}()

			m, err := event.Marshal(Marshaler, event.ProcessInstanceUpdated{
				Instance: command.ProcessInstance{ID: "<instance>"},
			})
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() bool {
				broker.Publish(ctx, envelope.DefaultEventTopic, m)
				_, ok, _ := repo.Load(ctx, "<instance>")
				return ok
			}).Should(BeTrue())

			cancelRun()
			Eventually(done).Should(Receive(Equal(context.Canceled)))
		})

		It("returns an error if the subscription fails", func() {
			projector.Subscriber = &SubscriberStub{
				SubscribeFunc: func(context.Context, string) (transport.Subscription, error) {
					return nil, errors.New("<error>")
				},
			}

			err := projector.Run(ctx)
			Expect(err).To(MatchError("unable to subscribe to events: <error>"))
		})
	})
})
