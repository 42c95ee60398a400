package utils

import (
	"fmt"
	"sync"
)

// DynBuffer is a reusable append buffer; Reset keeps the backing array
type DynBuffer[T any] struct {
	items []T
}

func NewDynBuffer[T any](capacity int) *DynBuffer[T] {
	return &DynBuffer[T]{items: make([]T, 0, capacity)}
}

func (db *DynBuffer[T]) Add(item T) {
	db.items = append(db.items, item)
}

func (db *DynBuffer[T]) Cells() []T {
	return db.items
}

func (db *DynBuffer[T]) Len() int {
	return len(db.items)
}

func (db *DynBuffer[T]) Reset() {
	db.items = db.items[:0]
}

/*
MailBox moves messages between NP goroutine buckets in two phases. During the post
phase every bucket queues messages per target with PostMessage and hands them over
with DeliverMyMessages. After all buckets have delivered, each bucket drains its
inbox with ReceiveMyMessages and reads ReceiveMsgQs[myBucket].
*/
type MailBox[T any] struct {
	NP           int
	MessageChans []chan *DynBuffer[T]    // Inbox per bucket, room for one buffer from every sender
	PostMsgQs    []map[int]*DynBuffer[T] // Outgoing queues per bucket, keyed by target bucket
	ReceiveMsgQs []*DynBuffer[T]
	MailFlag     []bool // Bucket has undelivered messages
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan *DynBuffer[T], NP),
		PostMsgQs:    make([]map[int]*DynBuffer[T], NP),
		ReceiveMsgQs: make([]*DynBuffer[T], NP),
		MailFlag:     make([]bool, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan *DynBuffer[T], NP)
		mb.PostMsgQs[n] = make(map[int]*DynBuffer[T])
		mb.ReceiveMsgQs[n] = NewDynBuffer[T](0)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myBucket, target int, msg T) {
	if target < 0 || target >= mb.NP {
		panic(fmt.Sprintf("target bucket %d out of range [0, %d)", target, mb.NP))
	}
	q, ok := mb.PostMsgQs[myBucket][target]
	if !ok {
		q = NewDynBuffer[T](0)
		mb.PostMsgQs[myBucket][target] = q
	}
	q.Add(msg)
	mb.MailFlag[myBucket] = true
}

// DeliverMyMessages hands every non empty outgoing queue of myBucket to its target
func (mb *MailBox[T]) DeliverMyMessages(myBucket int) {
	if !mb.MailFlag[myBucket] {
		return
	}
	for target, q := range mb.PostMsgQs[myBucket] {
		if q.Len() > 0 {
			mb.MessageChans[target] <- q
		}
	}
	mb.MailFlag[myBucket] = false
}

// ReceiveMyMessages copies everything waiting in the inbox of myBucket and empties
// the sender queues it came from
func (mb *MailBox[T]) ReceiveMyMessages(myBucket int) {
	for {
		select {
		case q := <-mb.MessageChans[myBucket]:
			for _, msg := range q.Cells() {
				mb.ReceiveMsgQs[myBucket].Add(msg)
			}
			q.Reset()
		default:
			return
		}
	}
}

func (mb *MailBox[T]) ClearMyMessages(myBucket int) {
	mb.ReceiveMsgQs[myBucket].Reset()
}

// PartitionMap splits the index range [0, MaxIndex) into ParallelDegree contiguous
// buckets whose sizes differ by at most one
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Half open [begin, end) of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	var (
		size      = maxIndex / ParallelDegree
		remainder = maxIndex % ParallelDegree
		begin     int
	)
	for n := 0; n < ParallelDegree; n++ {
		end := begin + size
		if n < remainder {
			end++
		}
		pm.Partitions[n] = [2]int{begin, end}
		begin = end
	}
	return
}

// GetBucket returns the bucket holding index k and its range, or -1 when k is out of range
func (pm *PartitionMap) GetBucket(k int) (bucketNum, min, max int) {
	if k < 0 || k >= pm.MaxIndex {
		return -1, 0, 0
	}
	// The proportional guess is off by at most one bucket
	bucketNum = pm.ParallelDegree * k / pm.MaxIndex
	for k < pm.Partitions[bucketNum][0] {
		bucketNum--
	}
	for k >= pm.Partitions[bucketNum][1] {
		bucketNum++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// ParallelDo runs f once per bucket and blocks until all return.
// The first non-nil error in bucket order is returned.
func (pm *PartitionMap) ParallelDo(f func(np int) error) (err error) {
	var (
		wg   sync.WaitGroup
		errs = make([]error, pm.ParallelDegree)
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			errs[np] = f(np)
		}(np)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return
}
