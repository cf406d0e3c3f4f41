package processkit_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/dogmatiq/processkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	. "github.com/dogmatiq/processkit/fixtures"
	"github.com/dogmatiq/processkit/gateway"
	"github.com/dogmatiq/processkit/internal/simulator"
	"github.com/dogmatiq/processkit/readmodel"
	transportmemory "github.com/dogmatiq/processkit/transport/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Service", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		broker  *transportmemory.Broker
		engine  *simulator.Engine
		service *Service
		result  chan error
	)

	run := func(options ...ServiceOption) {
		service = New(
			append(
				[]ServiceOption{
					WithBroker(broker),
					WithMarshaler(Marshaler),
					WithLogger(logging.DiscardLogger{}),
					WithReplyTimeout(2 * time.Second),
				},
				options...,
			)...,
		)

		result = make(chan error, 1)
		go func() {
			result <- service.Run(ctx)
		}()

		Eventually(service.Ready()).Should(BeClosed())
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		broker = &transportmemory.Broker{}

		engine = &simulator.Engine{
			Definitions: []simulator.Definition{
				{
					ProcessDefinition: command.ProcessDefinition{ID: "order:1", Key: "order", Name: "Order", Version: 1},
					Subprocesses:      []string{"payment", "shipping"},
				},
				{ProcessDefinition: command.ProcessDefinition{ID: "payment:1", Key: "payment", Name: "Payment", Version: 1}},
				{ProcessDefinition: command.ProcessDefinition{ID: "shipping:1", Key: "shipping", Name: "Shipping", Version: 1}},
			},
			Publisher: broker,
			Marshaler: Marshaler,
			Logger:    logging.DiscardLogger{},
		}
	})

	AfterEach(func() {
		cancel()

		if result != nil {
			Eventually(result).Should(Receive())
			result = nil
		}
	})

	When("the command handler is hosted by the service", func() {
		BeforeEach(func() {
			run(WithHandler(engine.Mux()))
		})

		It("returns the result of the command", func() {
			res, err := service.Dispatch(ctx, command.StartProcess{
				ProcessDefinitionKey: "order",
				BusinessKey:          "bk-1",
			})
			Expect(err).ShouldNot(HaveOccurred())

			pi := res.(command.ProcessInstanceResult).Instance
			Expect(pi.ProcessDefinitionID).To(Equal("order:1"))
			Expect(pi.BusinessKey).To(Equal("bk-1"))
		})

		It("returns remote errors", func() {
			_, err := service.Gateway().SuspendProcess(ctx, command.SuspendProcess{
				ProcessInstanceID: "unknown",
			})

			var remote gateway.RemoteCommandError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Code).To(Equal(command.NotFound))
		})

		It("projects the process instances with their subprocesses grouped beneath them", func() {
			pi, err := service.Gateway().StartProcess(ctx, command.StartProcess{
				ProcessDefinitionKey: "order",
			})
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() ([]readmodel.ProcessInstanceSummary, error) {
				row, ok, err := service.Load(ctx, pi.ID)
				if !ok || err != nil {
					return nil, err
				}
				return row.Subprocesses, nil
			}).Should(HaveLen(2))

			c, err := readmodel.ParseCriteria("processDefinitionKey:order")
			Expect(err).ShouldNot(HaveOccurred())

			page, err := service.FindPage(ctx, c, readmodel.PageRequest{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(page.TotalElements).To(Equal(1))
			Expect(page.Content[0].ID).To(Equal(pi.ID))

			var keys []string
			for _, s := range page.Content[0].Subprocesses {
				keys = append(keys, s.ProcessDefinitionKey)
			}
			Expect(keys).To(ConsistOf("payment", "shipping"))
		})

		It("removes deleted instances from the read-model", func() {
			pi, err := service.Gateway().StartProcess(ctx, command.StartProcess{
				ProcessDefinitionKey: "order",
			})
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() (bool, error) {
				_, ok, err := service.Load(ctx, pi.ID)
				return ok, err
			}).Should(BeTrue())

			_, err = service.Gateway().DeleteProcess(ctx, command.DeleteProcess{
				ProcessInstanceID: pi.ID,
			})
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() (int, error) {
				page, err := service.FindPage(ctx, nil, readmodel.PageRequest{})
				return page.TotalElements, err
			}).Should(Equal(0))
		})
	})

	When("no command handler is hosted by the service", func() {
		BeforeEach(func() {
			run(WithReplyTimeout(20 * time.Millisecond))
		})

		It("times out waiting for the result", func() {
			_, err := service.Dispatch(ctx, command.SyncProcessDefinitions{})
			Expect(err).To(MatchError(gateway.ErrTimeout))
		})
	})

	When("commands are executed by a remote handler", func() {
		It("does not limit the number of outstanding calls by default", func() {
			const n = 8

			sub, err := broker.Subscribe(ctx, DefaultTopics.Commands)
			Expect(err).ShouldNot(HaveOccurred())
			defer sub.Close()

			// Reply only once every command is pending, so that each call
			// must be outstanding at the same time.
			go func() {
				defer GinkgoRecover()

				var pending []envelope.Command
				for len(pending) < n {
					d, err := sub.Next(ctx)
					if err != nil {
						return
					}

					m, err := d.Message()
					Expect(err).ShouldNot(HaveOccurred())

					env, err := envelope.UnmarshalCommand(Marshaler, m)
					Expect(err).ShouldNot(HaveOccurred())

					pending = append(pending, env)
				}

				for _, env := range pending {
					m, err := envelope.MarshalResult(
						Marshaler,
						envelope.PackResult(env, command.EmptyResult{}),
					)
					Expect(err).ShouldNot(HaveOccurred())
					Expect(broker.Publish(ctx, DefaultTopics.Results, m)).To(Succeed())
				}
			}()

			run(WithConcurrencyLimit(2))

			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				go func() {
					_, err := service.Dispatch(ctx, command.SendSignal{Name: "<signal>"})
					errs <- err
				}()
			}

			for i := 0; i < n; i++ {
				Eventually(errs).Should(Receive(BeNil()))
			}
		})

		It("blocks callers beyond the outstanding call limit", func() {
			run(
				WithOutstandingCallLimit(1),
				WithReplyTimeout(100*time.Millisecond),
			)

			first := make(chan error, 1)
			go func() {
				_, err := service.Dispatch(ctx, command.SendSignal{Name: "<signal>"})
				first <- err
			}()

			Eventually(func() int {
				return service.Gateway().Registry.Len()
			}).Should(Equal(1))

			waitCtx, cancelWait := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancelWait()

			_, err := service.Dispatch(waitCtx, command.SendSignal{Name: "<signal>"})
			Expect(err).To(Equal(context.DeadlineExceeded))

			Eventually(first).Should(Receive(MatchError(gateway.ErrTimeout)))
		})
	})

	Describe("func Run()", func() {
		It("returns the context error when the context is canceled", func() {
			run()
			cancel()

			Eventually(result).Should(Receive(Equal(context.Canceled)))
			result = nil
		})
	})

	Describe("func Identity()", func() {
		It("returns the identity of the service", func() {
			service = New(WithIdentity("<name>", "0f4c8d9e-6b2a-4e1f-8c3d-7a9b5e2f1d04"))

			Expect(service.Identity().Name).To(Equal("<name>"))
			Expect(service.Identity().Key).To(Equal("0f4c8d9e-6b2a-4e1f-8c3d-7a9b5e2f1d04"))
		})
	})
})
