package syncx_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/dogmatiq/processkit/internal/x/syncx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type MutexNamespace", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		ns     *MutexNamespace
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		DeferCleanup(cancel)

		ns = &MutexNamespace{}
	})

	It("can be locked again after it is unlocked", func() {
		for i := 0; i < 3; i++ {
			unlock, err := ns.Lock(ctx, "instance-1")
			Expect(err).ShouldNot(HaveOccurred())
			unlock()
		}
	})

	It("does not block callers that lock different names", func() {
		unlock1, err := ns.Lock(ctx, "instance-1")
		Expect(err).ShouldNot(HaveOccurred())
		defer unlock1()

		unlock2, err := ns.Lock(ctx, "instance-2")
		Expect(err).ShouldNot(HaveOccurred())
		unlock2()
	})

	It("ignores repeated calls to the unlock function", func() {
		unlock, err := ns.Lock(ctx, "instance-1")
		Expect(err).ShouldNot(HaveOccurred())
		unlock()
		unlock()

		unlock, err = ns.Lock(ctx, "instance-1")
		Expect(err).ShouldNot(HaveOccurred())
		unlock()
	})

	It("serializes callers that lock the same name", func() {
		var (
			active  int32
			overlap int32
			done    = make(chan struct{})
		)

		for i := 0; i < 5; i++ {
			go func() {
				defer GinkgoRecover()
				defer func() { done <- struct{}{} }()

				unlock, err := ns.Lock(ctx, "instance-1")
				Expect(err).ShouldNot(HaveOccurred())
				defer unlock()

				if atomic.AddInt32(&active, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
			}()
		}

		for i := 0; i < 5; i++ {
			<-done
		}

		Expect(atomic.LoadInt32(&overlap)).To(BeZero())
	})

	When("the name is already locked", func() {
		var unlock UnlockFunc

		BeforeEach(func() {
			var err error
			unlock, err = ns.Lock(ctx, "instance-1")
			Expect(err).ShouldNot(HaveOccurred())
			DeferCleanup(func() { unlock() })
		})

		It("waits for the holder to unlock it", func() {
			time.AfterFunc(5*time.Millisecond, unlock)

			u, err := ns.Lock(ctx, "instance-1")
			Expect(err).ShouldNot(HaveOccurred())
			u()
		})

		It("returns the context error if the context ends first", func() {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
			defer cancel()

			_, err := ns.Lock(ctx, "instance-1")
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("returns immediately if the context is already canceled", func() {
			ctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := ns.Lock(ctx, "instance-1")
			Expect(err).To(Equal(context.Canceled))
		})
	})
})
