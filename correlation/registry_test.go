package correlation_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/dogmatiq/processkit/correlation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Registry", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		registry *Registry
		deadline time.Time
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		registry = &Registry{}
		deadline = time.Now().Add(1 * time.Hour)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Register()", func() {
		It("adds a pending call", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.ID).To(Equal("<id>"))
			Expect(c.Deadline).To(Equal(deadline))
			Expect(registry.Has("<id>")).To(BeTrue())
			Expect(registry.Len()).To(Equal(1))
		})

		It("returns an error if the ID is already pending", func() {
			_, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = registry.Register("<id>", deadline)
			Expect(err).To(Equal(DuplicateCorrelationIDError{"<id>"}))
			Expect(registry.Len()).To(Equal(1))
		})
	})

	Describe("func Resolve()", func() {
		It("resolves the call with the value and removes it", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			ok := registry.Resolve("<id>", "<value>")
			Expect(ok).To(BeTrue())

			Eventually(c.Done()).Should(BeClosed())
			Expect(c.Reply()).To(Equal(Reply{Value: "<value>"}))
			Expect(registry.Has("<id>")).To(BeFalse())
			Expect(registry.Len()).To(BeZero())
		})

		It("returns false if the call is unknown", func() {
			ok := registry.Resolve("<unknown>", "<value>")
			Expect(ok).To(BeFalse())
		})

		It("ignores duplicate deliveries", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(registry.Resolve("<id>", "<first>")).To(BeTrue())
			Expect(registry.Resolve("<id>", "<second>")).To(BeFalse())

			Expect(c.Reply()).To(Equal(Reply{Value: "<first>"}))
		})

		It("does not affect other pending calls", func() {
			c1, err := registry.Register("<id-1>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = registry.Register("<id-2>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			registry.Resolve("<id-2>", "<value>")
			registry.Resolve("<unknown>", "<value>")

			Expect(c1.Done()).NotTo(BeClosed())
			Expect(registry.Has("<id-1>")).To(BeTrue())
		})
	})

	Describe("func Fail()", func() {
		It("resolves the call with the error", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(registry.Fail("<id>", errors.New("<error>"))).To(BeTrue())
			Expect(c.Reply().Err).To(MatchError("<error>"))
		})
	})

	Describe("func Expire()", func() {
		It("resolves the call with a timeout error", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(registry.Expire("<id>")).To(BeTrue())
			Expect(c.Reply()).To(Equal(Reply{Err: ErrTimeout}))
			Expect(registry.Len()).To(BeZero())
		})

		It("is a no-op if the call has already been resolved", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			registry.Resolve("<id>", "<value>")

			Expect(registry.Expire("<id>")).To(BeFalse())
			Expect(c.Reply()).To(Equal(Reply{Value: "<value>"}))
		})
	})

	Describe("func Cancel()", func() {
		It("resolves the call with the cause", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(registry.Cancel("<id>", context.Canceled)).To(BeTrue())
			Expect(c.Reply()).To(Equal(Reply{Err: context.Canceled}))
			Expect(registry.Len()).To(BeZero())
		})
	})

	Describe("func Wait()", func() {
		It("returns the reply when the call is resolved", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			go func() {
				time.Sleep(10 * time.Millisecond)
				registry.Resolve("<id>", "<value>")
			}()

			rep := registry.Wait(ctx, c)
			Expect(rep).To(Equal(Reply{Value: "<value>"}))
		})

		It("expires the call when the deadline passes", func() {
			c, err := registry.Register("<id>", time.Now().Add(1*time.Millisecond))
			Expect(err).ShouldNot(HaveOccurred())

			rep := registry.Wait(ctx, c)
			Expect(rep).To(Equal(Reply{Err: ErrTimeout}))
			Expect(registry.Len()).To(BeZero())
		})

		It("cancels the call when the context is canceled", func() {
			c, err := registry.Register("<id>", deadline)
			Expect(err).ShouldNot(HaveOccurred())

			waitCtx, cancelWait := context.WithCancel(ctx)
			cancelWait()

			rep := registry.Wait(waitCtx, c)
			Expect(rep).To(Equal(Reply{Err: context.Canceled}))
			Expect(registry.Len()).To(BeZero())
		})

		It("returns a reply that arrived before the deadline passed", func() {
			c, err := registry.Register("<id>", time.Now().Add(-1*time.Second))
			Expect(err).ShouldNot(HaveOccurred())

			registry.Resolve("<id>", "<value>")

			rep := registry.Wait(ctx, c)
			Expect(rep).To(Equal(Reply{Value: "<value>"}))
		})
	})

	It("resolves each call exactly once when resolution races with expiry", func() {
		const n = 1000

		var (
			calls []*PendingCall
			wins  [n]int32
			g     sync.WaitGroup
			m     sync.Mutex
		)

		for i := 0; i < n; i++ {
			c, err := registry.Register(fmt.Sprintf("<id-%d>", i), deadline)
			Expect(err).ShouldNot(HaveOccurred())
			calls = append(calls, c)
		}

		for i := 0; i < n; i++ {
			i := i
			id := fmt.Sprintf("<id-%d>", i)

			g.Add(2)

			go func() {
				defer g.Done()
				if registry.Resolve(id, i) {
					m.Lock()
					wins[i]++
					m.Unlock()
				}
			}()

			go func() {
				defer g.Done()
				if registry.Expire(id) {
					m.Lock()
					wins[i]++
					m.Unlock()
				}
			}()
		}

		g.Wait()

		for i, c := range calls {
			Expect(wins[i]).To(BeEquivalentTo(1))
			Expect(c.Done()).To(BeClosed())

			rep := c.Reply()
			if rep.Err != nil {
				Expect(rep.Err).To(Equal(ErrTimeout))
				Expect(rep.Value).To(BeNil())
			} else {
				Expect(rep.Value).To(Equal(i))
			}
		}

		Expect(registry.Len()).To(BeZero())
	})

	It("never reports a negative length while calls are resolved as they are registered", func() {
		const n = 1000

		var (
			g        sync.WaitGroup
			negative atomic.Bool
			done     = make(chan struct{})
		)

		go func() {
			for {
				select {
				case <-done:
					return
				default:
					if registry.Len() < 0 {
						negative.Store(true)
					}
				}
			}
		}()

		for i := 0; i < n; i++ {
			id := fmt.Sprintf("<id-%d>", i)

			g.Add(2)

			go func() {
				defer GinkgoRecover()
				defer g.Done()
				_, err := registry.Register(id, deadline)
				Expect(err).ShouldNot(HaveOccurred())
			}()

			go func() {
				defer g.Done()
				for !registry.Resolve(id, "<value>") {
					runtime.Gosched()
				}
			}()
		}

		g.Wait()
		close(done)

		Expect(negative.Load()).To(BeFalse())
		Expect(registry.Len()).To(BeZero())
	})
})

var _ = Describe("type PendingCall", func() {
	Describe("func Await()", func() {
		It("returns the context error if the call is not resolved in time", func() {
			registry := &Registry{}
			c, err := registry.Register("<id>", time.Now().Add(1*time.Hour))
			Expect(err).ShouldNot(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			_, err = c.Await(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
			Expect(registry.Has("<id>")).To(BeTrue())
		})
	})
})
