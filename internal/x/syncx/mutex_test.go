package syncx_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/processkit/internal/x/syncx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type RWMutex", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		mutex  *RWMutex
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
		mutex = &RWMutex{}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Lock()", func() {
		It("blocks calls to Lock()", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("blocks calls to RLock()", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("returns an error if the context is canceled", func() {
			cancel()

			err := mutex.Lock(ctx)
			Expect(err).To(Equal(context.Canceled))
		})
	})

	Describe("func Unlock()", func() {
		It("allows subsequent calls to Lock()", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			mutex.Unlock()

			err = mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("unblocks all blocking calls to RLock()", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			errors := make(chan error, 2)
			fn := func() { errors <- mutex.RLock(ctx) }

			go fn()
			go fn()

			time.Sleep(5 * time.Millisecond)
			mutex.Unlock()

			Expect(<-errors).ShouldNot(HaveOccurred())
			Expect(<-errors).ShouldNot(HaveOccurred())
		})

		It("panics if the mutex is not write-locked", func() {
			Expect(func() {
				mutex.Unlock()
			}).To(Panic())
		})
	})

	Describe("func RLock()", func() {
		It("blocks calls to Lock()", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("does not block calls to RLock()", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("returns an error if the context is canceled", func() {
			cancel()

			err := mutex.RLock(ctx)
			Expect(err).To(Equal(context.Canceled))
		})
	})

	Describe("func RUnlock()", func() {
		It("allows subsequent calls to Lock() once every read-lock is released", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			mutex.RUnlock()
			mutex.RUnlock()

			err = mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("does not allow calls to Lock() while other read-locks are held", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			mutex.RUnlock()

			err = mutex.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("panics if the mutex is not read-locked", func() {
			Expect(func() {
				mutex.RUnlock()
			}).To(Panic())
		})
	})
})
