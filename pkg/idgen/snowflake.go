package idgen

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snowflake layout, 64 bits:
//
//	0 | 41 bits ms since epoch | 10 bits worker | 12 bits sequence
const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Business number prefixes.
const (
	PrefixCompletion  = "CMP"
	PrefixClaim       = "CLM"
	PrefixRedemption  = "RDM"
	PrefixTransaction = "TXN"
	codePrefix        = "FAN-"
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

func New(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be within 0-%d, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init sets the process-wide generator. Only the first successful call takes effect.
func Init(workerID int64) error {
	s, err := New(workerID)
	if err != nil {
		return err
	}
	once.Do(func() { defaultGenerator = s })
	return nil
}

// NextID returns an id from the process-wide generator, worker 1 unless Init ran first.
func NextID() int64 {
	once.Do(func() { defaultGenerator = &Snowflake{workerID: 1} })
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// clock stepped back; hold the last timestamp
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// Number formats prefix + the next id, e.g. CMP583920174629437440.
func Number(prefix string) string {
	return prefix + strconv.FormatInt(NextID(), 10)
}

func CompletionNo() string  { return Number(PrefixCompletion) }
func ClaimNo() string       { return Number(PrefixClaim) }
func RedemptionNo() string  { return Number(PrefixRedemption) }
func TransactionNo() string { return Number(PrefixTransaction) }

// RedemptionCode is a short unique code shown to the fan, e.g. FAN-4GJ2K9QX1S0.
func RedemptionCode() string {
	return codePrefix + strings.ToUpper(strconv.FormatInt(NextID(), 36))
}
