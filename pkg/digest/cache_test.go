package digest_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/digest"
	"github.com/obsdb/odb/pkg/odbtype"
)

var _ = Describe("redis-backed Cache", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
		cache  digest.Cache
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cache = digest.NewRedisCache(client, time.Hour)
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		mr.Close()
	})

	It("misses on an unknown key", func() {
		key := digest.DigestKey{ProgramID: "p-1", ObservationID: "o-1"}
		_, ok, err := cache.Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("round-trips a stored digest", func() {
		key := digest.DigestKey{ProgramID: "p-1", ObservationID: "o-1"}
		stored := digest.ExecutionDigest{
			Setup: digest.SetupTime{
				Full:          odbtype.SpanFromMicros(960_000_000),
				Reacquisition: odbtype.SpanFromMicros(300_000_000),
			},
			Acquisition: digest.SequenceDigest{AtomCount: 1},
			Science:     digest.SequenceDigest{AtomCount: 6},
		}

		Expect(cache.Put(ctx, key, stored)).To(Succeed())

		got, ok, err := cache.Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(*got).To(Equal(stored))
	})
})

var _ = Describe("redis-backed ItcCache", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
		cache  digest.ItcCache
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cache = digest.NewRedisItcCache(client, time.Hour)
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		mr.Close()
	})

	It("round-trips a stored ITC result", func() {
		result := digest.ItcResult{ExposureTime: 300 * time.Second, ExposureCount: 6}
		Expect(cache.Put(ctx, "o-1", result)).To(Succeed())

		got, ok, err := cache.Get(ctx, "o-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(*got).To(Equal(result))
	})
})
