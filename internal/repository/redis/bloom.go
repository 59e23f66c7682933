package redis

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"hash/fnv"

	"github.com/redis/go-redis/v9"

	"github.com/Guyuepp/go-comment-engine/domain"
)

const (
	KeyCommentBloom = "bloom:comment:ids"
	// KeyCommentBloomReady is set once every stored id has been loaded.
	// Until then, and after a flush, the filter answers "maybe" for everything.
	KeyCommentBloomReady = "bloom:comment:ready"

	DefaultBloomBitSize = 1 << 24
)

type commentBloom struct {
	client  *redis.Client
	bitSize uint64
}

var _ domain.IDFilter = (*commentBloom)(nil)

// NewCommentBloom returns a redis bitmap bloom filter with bitSize bits (k=3)
func NewCommentBloom(client *redis.Client, bitSize uint64) *commentBloom {
	if bitSize == 0 {
		bitSize = DefaultBloomBitSize
	}
	return &commentBloom{
		client:  client,
		bitSize: bitSize,
	}
}

func (r *commentBloom) Add(ctx context.Context, id int64) error {
	pipe := r.client.Pipeline()
	for _, offset := range r.offsets(id) {
		pipe.SetBit(ctx, KeyCommentBloom, int64(offset), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// id may be missing from the bitmap now, so the filter must answer "maybe" until rewarmed
		if derr := r.client.Del(context.WithoutCancel(ctx), KeyCommentBloomReady).Err(); derr != nil {
			return errors.Join(err, derr)
		}
		return err
	}
	return nil
}

func (r *commentBloom) Exists(ctx context.Context, id int64) (bool, error) {
	pipe := r.client.Pipeline()
	// both the marker and the bitmap must be there, an evicted bitmap reads as all zeros
	ready := pipe.Exists(ctx, KeyCommentBloomReady, KeyCommentBloom)
	bits := make([]*redis.IntCmd, 0, 3)
	for _, offset := range r.offsets(id) {
		bits = append(bits, pipe.GetBit(ctx, KeyCommentBloom, int64(offset)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	if ready.Val() < 2 {
		return true, nil
	}
	for _, cmd := range bits {
		if cmd.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (r *commentBloom) BulkAdd(ctx context.Context, ids []int64, complete bool) error {
	pipe := r.client.Pipeline()
	for _, id := range ids {
		for _, offset := range r.offsets(id) {
			pipe.SetBit(ctx, KeyCommentBloom, int64(offset), 1)
		}
	}
	if complete {
		pipe.Set(ctx, KeyCommentBloomReady, 1, 0)
	}
	if pipe.Len() == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *commentBloom) offsets(id int64) [3]uint64 {
	data := fmt.Appendf(nil, "%d", id)

	// Hash 1: CRC32
	h1 := uint64(crc32.ChecksumIEEE(data))
	// Hash 2: FNV64
	f := fnv.New64()
	f.Write(data)
	h2 := f.Sum64()

	return [3]uint64{
		h1 % r.bitSize,
		h2 % r.bitSize,
		// Hash 3: 线性混合
		(h1 + h2 + 0xABC) % r.bitSize,
	}
}
