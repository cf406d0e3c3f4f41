package bboltx

import "go.etcd.io/bbolt"

// BucketParent is a transaction or bucket that contains buckets.
type BucketParent interface {
	CreateBucketIfNotExists([]byte) (*bbolt.Bucket, error)
	Bucket([]byte) *bbolt.Bucket
	DeleteBucket([]byte) error
}

var (
	_ BucketParent = (*bbolt.Tx)(nil)
	_ BucketParent = (*bbolt.Bucket)(nil)
)

// CreateBucketIfNotExists creates nested buckets with names given by the
// elements of path.
func CreateBucketIfNotExists(p BucketParent, path ...[]byte) *bbolt.Bucket {
	if len(path) == 0 {
		panic("at least one path element must be provided")
	}

	var b *bbolt.Bucket

	for _, n := range path {
		var err error
		b, err = p.CreateBucketIfNotExists(n)
		Must(err)

		p = b
	}

	return b
}

// Bucket gets nested buckets with names given by the elements of path.
//
// It returns nil if any of the nested buckets does not exist.
func Bucket(p BucketParent, path ...[]byte) (b *bbolt.Bucket) {
	if len(path) == 0 {
		panic("at least one path element must be provided")
	}

	for _, n := range path {
		b = p.Bucket(n)
		if b == nil {
			return nil
		}

		p = b
	}

	return b
}

// Put writes a value to a bucket.
func Put(b *bbolt.Bucket, k, v []byte) {
	Must(b.Put(k, v))
}

// Delete removes a key from a bucket.
//
// It is not an error if the key does not exist.
func Delete(b *bbolt.Bucket, k []byte) {
	Must(b.Delete(k))
}

// DeleteBucketIfEmpty removes the bucket named k from p if it has no keys.
func DeleteBucketIfEmpty(p BucketParent, k []byte) {
	b := p.Bucket(k)
	if b == nil {
		return
	}

	if c, _ := b.Cursor().First(); c != nil {
		return
	}

	Must(p.DeleteBucket(k))
}
